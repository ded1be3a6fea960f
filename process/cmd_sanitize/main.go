package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"cashadvance/pkg/logger"
	"cashadvance/process/sanitize"
	"cashadvance/service"
	"cashadvance/store"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	dryRun := flag.Bool("dry-run", true, "Don't perform destructive actions; show what would be done")
	yes := flag.Bool("yes", false, "Confirm destructive action (required to actually truncate)")
	reseed := flag.Bool("reseed", false, "After truncation, recreate the admin from ADMIN_EMAIL/ADMIN_PASSWORD")
	tables := flag.String("tables", sanitize.DefaultTables, "Comma-separated list of tables to truncate")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN must be set to run db_sanitize")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	opts := sanitize.Options{Tables: *tables, DryRun: *dryRun, Yes: *yes}
	if *reseed {
		opts.Reseed = func(ctx context.Context) error { return reseedAdmin(ctx, dsn) }
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sanitize.Run(ctx, db, opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func reseedAdmin(ctx context.Context, dsn string) error {
	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("ADMIN_EMAIL/ADMIN_PASSWORD not set; skipping admin reseed")
		return nil
	}
	gdb, err := store.Open(store.Config{Driver: "postgres", DSN: dsn}, logger.Discard())
	if err != nil {
		return err
	}
	st := store.New(gdb)
	defer st.Close()
	auth := service.NewAuthService(st, service.AuthConfig{Secret: []byte("unused")}, logger.Discard())
	res, err := auth.Register(ctx, service.RegisterInput{Email: email, Password: password, FirstName: "Admin", LastName: "User"})
	if err != nil {
		return err
	}
	return st.SetAdmin(ctx, res.User.ID, true)
}
