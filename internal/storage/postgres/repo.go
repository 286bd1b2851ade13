// Package postgres is the PostgreSQL sink, on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"datenorm/internal/storage"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgxpool"
)

func init() {
	storage.Register("postgres", New)
}

// Repo implements storage.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New connects a pool and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the pool.
func (r *Repo) Close() { r.pool.Close() }

// EnsureTable creates the schema (for qualified names) and the table.
func (r *Repo) EnsureTable(ctx context.Context, t storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(t)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("postgres: create schema for %s: %w", t.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", t.Name, err)
	}
	return nil
}

// InsertRows issues one multi-row INSERT. Dedupe columns become
// ON CONFLICT (...) DO NOTHING, which needs a matching unique constraint.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupe []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, args := buildInsertSQL(table, columns, rows, dedupe)
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func pgTable(name string) string {
	schema, table := storage.SplitQualified(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

func pgType(t string) string {
	switch t {
	case storage.TypeDate:
		return "DATE"
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeTimestamp:
		return "TIMESTAMPTZ"
	case storage.TypeHash:
		return "CHAR(64)"
	default:
		return "TEXT"
	}
}

func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if err := t.Validate(); err != nil {
		return "", "", err
	}
	if schema, _ := storage.SplitQualified(t.Name); schema != "" {
		schemaSQL = "CREATE SCHEMA IF NOT EXISTS " + pgIdent(schema) + ";"
	}

	defs := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		d := pgIdent(c.Name) + " " + pgType(c.Type)
		if !c.IsNullable() {
			d += " NOT NULL"
		}
		defs = append(defs, d)
	}
	for _, con := range t.Constraints {
		cols := make([]string, len(con.Columns))
		for i, c := range con.Columns {
			cols[i] = pgIdent(c)
		}
		defs = append(defs, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}
	tableSQL = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", pgTable(t.Name), strings.Join(defs, ", "))
	return schemaSQL, tableSQL, nil
}

func buildInsertSQL(table string, columns []string, rows [][]any, dedupe []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTable(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, pgValue(row[j]))
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}

	if len(dedupe) > 0 {
		b.WriteString(" ON CONFLICT (")
		for i, c := range dedupe {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgIdent(c))
		}
		b.WriteString(") DO NOTHING")
	}
	b.WriteByte(';')
	return b.String(), args
}

// pgValue maps values pgx cannot encode directly.
func pgValue(v any) any {
	switch t := v.(type) {
	case civil.Date:
		return time.Date(t.Year, t.Month, t.Day, 0, 0, 0, 0, time.UTC)
	case int:
		return int64(t)
	default:
		return v
	}
}
