package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"cashadvance/process/schema"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set")
		os.Exit(2)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	fks, err := schema.ForeignKeys(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	schema.Print(os.Stdout, fks)
	if missing := schema.Missing(fks, schema.Expected); len(missing) > 0 {
		for _, m := range missing {
			fmt.Printf("MISSING: %s.%s -> %s\n", m.Table, m.Column, m.RefTable)
		}
		os.Exit(1)
	}
	fmt.Println("all expected foreign keys present")
}
