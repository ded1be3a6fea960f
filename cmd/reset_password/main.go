package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"cashadvance/pkg/apperr"
	"cashadvance/pkg/logger"
	"cashadvance/service"
	"cashadvance/store"

	"github.com/joho/godotenv"
)

func main() {
	email := flag.String("email", "", "email of the account to reset")
	password := flag.String("password", "", "new plaintext password (min 6 chars)")
	flag.Parse()
	if *email == "" || *password == "" {
		log.Fatal("--email and --password are required")
	}
	_ = godotenv.Load()
	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "postgres"
	}
	dsn := os.Getenv("DB_DSN")
	if driver == "postgres" && dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := store.Open(store.Config{Driver: driver, DSN: dsn}, logger.Discard())
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	st := store.New(gdb)
	defer st.Close()

	auth := service.NewAuthService(st, service.AuthConfig{Secret: []byte("unused")}, logger.Discard())
	if err := auth.SetPassword(context.Background(), *email, *password); err != nil {
		log.Fatalf("reset failed: %s", apperr.PublicMessage(err))
	}
	fmt.Printf("Password reset for user %s\n", store.NormalizeEmail(*email))
}
