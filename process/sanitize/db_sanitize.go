// Package sanitize truncates application tables on a development database.
package sanitize

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// DefaultTables lists every table the server migrates, children first.
const DefaultTables = "transactions,refresh_tokens,applications,users"

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type Options struct {
	Tables string
	DryRun bool
	Yes    bool
	// Reseed runs after a successful truncate; nil skips reseeding.
	Reseed func(ctx context.Context) error
}

// ParseTables splits a comma list into valid identifiers and rejected names.
func ParseTables(list string) (valid, rejected []string) {
	seen := map[string]bool{}
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if !nameRe.MatchString(p) {
			rejected = append(rejected, p)
			continue
		}
		valid = append(valid, p)
	}
	return valid, rejected
}

// TruncateStatement quotes already validated names.
func TruncateStatement(tables []string) string {
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	return fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
}

// Run reports what would be truncated and, with DryRun off and Yes set, does it.
func Run(ctx context.Context, db *sql.DB, opts Options, out io.Writer) error {
	if opts.Tables == "" {
		opts.Tables = DefaultTables
	}
	wanted, rejected := ParseTables(opts.Tables)
	for _, r := range rejected {
		fmt.Fprintf(out, "warning: skipping invalid table name %q\n", r)
	}

	var existing []string
	for _, t := range wanted {
		var cnt int64
		if err := db.QueryRowContext(ctx, `SELECT count(*) FROM pg_tables WHERE schemaname = 'public' AND tablename = $1`, t).Scan(&cnt); err != nil {
			return fmt.Errorf("query pg_tables for %s: %w", t, err)
		}
		if cnt == 0 {
			fmt.Fprintf(out, "info: table %s not found, skipping\n", t)
			continue
		}
		existing = append(existing, t)
	}
	if len(existing) == 0 {
		fmt.Fprintln(out, "no requested tables present in the database; nothing to do")
		return nil
	}

	fmt.Fprintln(out, "Tables considered for truncation:")
	for _, t := range existing {
		fmt.Fprintf(out, " - %s\n", t)
	}
	if opts.DryRun {
		fmt.Fprintln(out, "dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return nil
	}
	if !opts.Yes {
		fmt.Fprintln(out, "Destructive operation. Pass --yes to confirm execution. Aborting.")
		return nil
	}

	stmt := TruncateStatement(existing)
	fmt.Fprintf(out, "Executing: %s\n", stmt)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	fmt.Fprintln(out, "Truncate completed.")

	if opts.Reseed != nil {
		if err := opts.Reseed(ctx); err != nil {
			return fmt.Errorf("reseed: %w", err)
		}
		fmt.Fprintln(out, "Reseed completed.")
	}
	return nil
}
