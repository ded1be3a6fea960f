package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cashadvance/pkg/apperr"
	"cashadvance/pkg/logger"
	"cashadvance/service"
	"cashadvance/store"

	"github.com/joho/godotenv"
)

func main() {
	admin := flag.Bool("admin", false, "grant admin rights")
	flag.Parse()
	if flag.NArg() < 4 {
		fmt.Println("usage: go run ./cmd/create_user [-admin] <email> <password> <first name> <last name>")
		os.Exit(2)
	}
	email, password, first, last := flag.Arg(0), flag.Arg(1), flag.Arg(2), flag.Arg(3)

	_ = godotenv.Load()
	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "postgres"
	}
	dsn := os.Getenv("DB_DSN")
	if driver == "postgres" && strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	gdb, err := store.Open(store.Config{Driver: driver, DSN: dsn}, logger.Discard())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	st := store.New(gdb)
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		log.Printf("warning: migration: %v", err)
	}

	u, err := st.UserByEmail(ctx, email)
	switch {
	case err == nil:
		fmt.Printf("user %s already exists (id=%s)\n", u.Email, u.ID)
	case apperr.Is(err, apperr.KindNotFound):
		auth := service.NewAuthService(st, service.AuthConfig{Secret: []byte("unused")}, logger.Discard())
		res, err := auth.Register(ctx, service.RegisterInput{Email: email, Password: password, FirstName: first, LastName: last})
		if err != nil {
			log.Fatalf("failed to create user: %s", apperr.PublicMessage(err))
		}
		u = res.User
		fmt.Printf("created user %s id=%s\n", u.Email, u.ID)
	default:
		log.Fatalf("lookup user: %v", err)
	}

	if *admin && !u.IsAdmin {
		if err := st.SetAdmin(ctx, u.ID, true); err != nil {
			log.Fatalf("grant admin: %v", err)
		}
		fmt.Printf("granted admin to %s\n", u.Email)
	}
}
