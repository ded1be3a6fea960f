// Package schema inspects foreign keys of the live PostgreSQL schema.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
)

// ForeignKey is one constraint as reported by pg_constraint.
type ForeignKey struct {
	Name       string
	Table      string
	Columns    string
	RefTable   string
	RefColumns string
	Definition string
}

// Expectation names a column that must reference another table.
type Expectation struct {
	Table    string
	Column   string
	RefTable string
}

// Expected lists the references the server relies on for ownership integrity.
var Expected = []Expectation{
	{Table: "applications", Column: "user_id", RefTable: "users"},
	{Table: "transactions", Column: "application_id", RefTable: "applications"},
}

const fkQuery = `
SELECT
  con.conname AS constraint_name,
  rel.relname AS table_name,
  array_to_string(array_agg(att.attname ORDER BY u.ord), ',') AS src_columns,
  confrel.relname AS referenced_table,
  array_to_string(array_agg(att2.attname ORDER BY u.ord), ',') AS ref_columns,
  pg_get_constraintdef(con.oid) AS definition
FROM pg_constraint con
JOIN pg_class rel ON rel.oid = con.conrelid
JOIN pg_class confrel ON confrel.oid = con.confrelid
JOIN unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord) ON true
JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = u.attnum
LEFT JOIN unnest(con.confkey) WITH ORDINALITY AS v(confkey, ord2) ON v.ord2 = u.ord
LEFT JOIN pg_attribute att2 ON att2.attrelid = con.confrelid AND att2.attnum = v.confkey
WHERE con.contype = 'f'
GROUP BY con.oid, con.conname, rel.relname, confrel.relname
ORDER BY rel.relname, constraint_name`

// ForeignKeys lists every foreign key in the database.
func ForeignKeys(ctx context.Context, db *sql.DB) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, fkQuery)
	if err != nil {
		return nil, fmt.Errorf("query constraints: %w", err)
	}
	defer rows.Close()

	var out []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		var src, ref sql.NullString
		if err := rows.Scan(&fk.Name, &fk.Table, &src, &fk.RefTable, &ref, &fk.Definition); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		fk.Columns, fk.RefColumns = src.String, ref.String
		out = append(out, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Missing returns the expectations no foreign key satisfies.
func Missing(fks []ForeignKey, want []Expectation) []Expectation {
	var missing []Expectation
	for _, w := range want {
		found := false
		for _, fk := range fks {
			if fk.Table != w.Table || fk.RefTable != w.RefTable {
				continue
			}
			for _, c := range strings.Split(fk.Columns, ",") {
				if c == w.Column {
					found = true
				}
			}
		}
		if !found {
			missing = append(missing, w)
		}
	}
	return missing
}

// Print writes fks in a readable listing.
func Print(w io.Writer, fks []ForeignKey) {
	fmt.Fprintln(w, "Foreign keys:")
	for _, fk := range fks {
		fmt.Fprintf(w, "- %s: %s(%s) -> %s(%s)\n    def: %s\n", fk.Name, fk.Table, fk.Columns, fk.RefTable, fk.RefColumns, fk.Definition)
	}
}
