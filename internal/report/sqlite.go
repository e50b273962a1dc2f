package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/census-cli/internal/census"
	_ "modernc.org/sqlite"
)

// WriteSQLite stores ds and narrative as a fresh database at path. Values
// are raw numbers with absent fields stored as NULL; row 0 is the national
// aggregate. The file is built beside path and renamed into place.
func WriteSQLite(ctx context.Context, path string, ds census.Dataset, narrative string, createdAt time.Time) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	if err := writeSQLite(ctx, tmp, ds, narrative, createdAt); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sqlite: rename: %w", err)
	}
	return nil
}

func writeSQLite(ctx context.Context, path string, ds census.Dataset, narrative string, createdAt time.Time) error {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(delete)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("sqlite: open: %w", err)
	}
	defer db.Close()

	fields := census.Fields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f.String())
	}
	ddl := []string{
		`CREATE TABLE regions (
		row_num INTEGER PRIMARY KEY,
		name    TEXT NOT NULL,
		` + strings.Join(cols, " REAL,\n\t\t") + ` REAL
	)`,
		`CREATE TABLE analysis (
		id         INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL,
		text       TEXT NOT NULL
	)`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite: create tables: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	q := `INSERT INTO regions (row_num, name, ` + strings.Join(cols, ", ") + `) VALUES (?, ?` +
		strings.Repeat(", ?", len(cols)) + `)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()
	for i, r := range ds.Rows {
		args := make([]any, 0, len(fields)+2)
		args = append(args, i, r.Name)
		for _, f := range fields {
			n := r.Get(f)
			args = append(args, sql.NullFloat64{Float64: n.Value, Valid: n.Valid})
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("sqlite: insert %q: %w", r.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO analysis (created_at, text) VALUES (?, ?)`,
		createdAt.UTC().Format(time.RFC3339), narrative); err != nil {
		return fmt.Errorf("sqlite: insert analysis: %w", err)
	}
	return tx.Commit()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
