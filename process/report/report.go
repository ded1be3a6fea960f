// Package report builds the monthly application report straight from SQL.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Options selects the month (YYYY-MM, UTC) and optionally a single user by email.
type Options struct {
	Month string
	Email string
	List  bool
}

// StatusLine aggregates the applications of one status.
type StatusLine struct {
	Status    string
	Count     int64
	Requested decimal.Decimal
	Disbursed decimal.Decimal
	Repaid    decimal.Decimal
}

// Row is one application in the --list output.
type Row struct {
	ID        string
	Email     string
	Status    string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

type Report struct {
	Month string
	Email string
	Start time.Time
	End   time.Time
	Lines []StatusLine
	Rows  []Row
}

// Totals sums every status line.
func (r *Report) Totals() StatusLine {
	t := StatusLine{Status: "TOTAL"}
	for _, l := range r.Lines {
		t.Count += l.Count
		t.Requested = t.Requested.Add(l.Requested)
		t.Disbursed = t.Disbursed.Add(l.Disbursed)
		t.Repaid = t.Repaid.Add(l.Repaid)
	}
	return t
}

// MonthBounds returns [start, end) of month in UTC.
func MonthBounds(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

const summaryQuery = `SELECT status, COUNT(*), COALESCE(SUM(amount),0), COALESCE(SUM(disbursed_amount),0), COALESCE(SUM(repaid_amount),0)
FROM applications
WHERE created_at >= $1 AND created_at < $2 AND ($3 = '' OR user_id = $3)
GROUP BY status
ORDER BY status`

const listQuery = `SELECT a.id, u.email, a.status, a.amount, a.created_at
FROM applications a JOIN users u ON u.id = a.user_id
WHERE a.created_at >= $1 AND a.created_at < $2 AND ($3 = '' OR a.user_id = $3)
ORDER BY a.created_at, a.id`

// Run queries the report for opts.
func Run(ctx context.Context, db *sql.DB, opts Options) (*Report, error) {
	start, end, err := MonthBounds(opts.Month)
	if err != nil {
		return nil, err
	}
	rep := &Report{Month: opts.Month, Start: start, End: end}

	userID := ""
	if email := strings.ToLower(strings.TrimSpace(opts.Email)); email != "" {
		rep.Email = email
		if err := db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("user %s not found", email)
			}
			return nil, fmt.Errorf("find user: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, summaryQuery, start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("summary query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l StatusLine
		if err := rows.Scan(&l.Status, &l.Count, &l.Requested, &l.Disbursed, &l.Repaid); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		rep.Lines = append(rep.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summary rows: %w", err)
	}

	if opts.List {
		if rep.Rows, err = listRows(ctx, db, start, end, userID); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func listRows(ctx context.Context, db *sql.DB, start, end time.Time, userID string) ([]Row, error) {
	rows, err := db.QueryContext(ctx, listQuery, start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Email, &r.Status, &r.Amount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Write prints rep as an aligned table.
func Write(w io.Writer, rep *Report) error {
	who := "all users"
	if rep.Email != "" {
		who = rep.Email
	}
	fmt.Fprintf(w, "Report for %s month=%s (UTC)\n", who, rep.Month)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCOUNT\tREQUESTED\tDISBURSED\tREPAID")
	for _, l := range append(rep.Lines, rep.Totals()) {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", l.Status, l.Count,
			l.Requested.StringFixed(2), l.Disbursed.StringFixed(2), l.Repaid.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range rep.Rows {
		fmt.Fprintf(w, "%s|%s|%s|%s|%s\n", r.ID, r.Email, r.Status, r.Amount.StringFixed(2), r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
