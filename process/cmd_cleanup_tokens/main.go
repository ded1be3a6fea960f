package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Deletes refresh tokens that are expired, or revoked for longer than -keep.
func main() {
	keep := flag.Duration("keep", 7*24*time.Hour, "how long to keep revoked tokens")
	dryRun := flag.Bool("dry-run", false, "only count matching rows")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	now := time.Now()
	cutoff := now.Add(-*keep)
	if *dryRun {
		var n int64
		if err := db.QueryRow(`SELECT COUNT(*) FROM refresh_tokens WHERE expires_at < $1 OR (revoked AND updated_at < $2)`, now, cutoff).Scan(&n); err != nil {
			log.Fatalf("count tokens: %v", err)
		}
		fmt.Printf("dry run: %d refresh tokens would be deleted\n", n)
		return
	}
	res, err := db.Exec(`DELETE FROM refresh_tokens WHERE expires_at < $1 OR (revoked AND updated_at < $2)`, now, cutoff)
	if err != nil {
		log.Fatalf("delete tokens: %v", err)
	}
	n, _ := res.RowsAffected()
	fmt.Printf("cleanup done: refresh tokens deleted=%d\n", n)
}
