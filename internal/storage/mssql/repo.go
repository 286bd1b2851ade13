// Package mssql is the SQL Server sink, on database/sql with the
// go-mssqldb driver. civil.Date values bind natively as DATE.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datenorm/internal/storage"

	_ "github.com/microsoft/go-mssqldb"
)

func init() {
	storage.Register("mssql", New)
}

// execer is the part of *sql.DB the repo uses.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Repo implements storage.Repository.
type Repo struct {
	db execer
}

// New opens a "sqlserver" handle and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: %w", err)
	}
	db.SetMaxOpenConns(8)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql ping: %w", err)
	}
	return &Repo{db: db}, nil
}

// Close closes the handle.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the schema and the table when missing.
func (r *Repo) EnsureTable(ctx context.Context, t storage.TableSpec) error {
	stmts, err := buildCreateSQL(t)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("mssql: create %s: %w", t.Name, err)
		}
	}
	return nil
}

// InsertRows inserts rows. SQL Server has no ON CONFLICT, so with dedupe
// columns the batch is first reduced to one row per key and then inserted
// with WHERE NOT EXISTS against the table.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupe []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var (
		query string
		args  []any
	)
	if len(dedupe) == 0 {
		query, args = buildInsertSQL(table, columns, rows)
	} else {
		uniq, err := storage.DedupeRows(rows, columns, dedupe)
		if err != nil {
			return 0, fmt.Errorf("mssql: %w", err)
		}
		query, args = buildInsertNotExistsSQL(table, columns, uniq, dedupe)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func tableIdent(name string) string {
	schema, table := storage.SplitQualified(name)
	if schema == "" {
		return ident(table)
	}
	return ident(schema) + "." + ident(table)
}

func sqlType(t string) string {
	switch t {
	case storage.TypeDate:
		return "DATE"
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeTimestamp:
		return "DATETIMEOFFSET"
	case storage.TypeHash:
		return "CHAR(64)"
	case storage.TypeKey:
		return "NVARCHAR(200)"
	default:
		return "NVARCHAR(MAX)"
	}
}

func buildCreateSQL(t storage.TableSpec) ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	var stmts []string
	if schema, _ := storage.SplitQualified(t.Name); schema != "" {
		stmts = append(stmts, fmt.Sprintf(
			"IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s');",
			strings.ReplaceAll(schema, "'", "''"), strings.ReplaceAll(ident(schema), "'", "''")))
	}

	defs := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		d := ident(c.Name) + " " + sqlType(c.Type)
		if !c.IsNullable() {
			d += " NOT NULL"
		}
		defs = append(defs, d)
	}
	for _, con := range t.Constraints {
		cols := make([]string, len(con.Columns))
		for i, c := range con.Columns {
			cols[i] = ident(c)
		}
		defs = append(defs, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}
	stmts = append(stmts, fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(t.Name, "'", "''"), tableIdent(t.Name), strings.Join(defs, ", ")))
	return stmts, nil
}

func columnList(b *strings.Builder, prefix string, columns []string) {
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prefix)
		b.WriteString(ident(c))
	}
}

func valuesList(b *strings.Builder, columns []string, rows [][]any) []any {
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
			args = append(args, row[j])
			fmt.Fprintf(b, "@p%d", len(args))
		}
		b.WriteByte(')')
	}
	return args
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	columnList(&b, "", columns)
	b.WriteString(") VALUES ")
	args := valuesList(&b, columns, rows)
	return b.String(), args
}

func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, dedupe []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	columnList(&b, "", columns)
	b.WriteString(") SELECT ")
	columnList(&b, "v.", columns)
	b.WriteString(" FROM (VALUES ")
	args := valuesList(&b, columns, rows)
	b.WriteString(") AS v(")
	columnList(&b, "", columns)
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(tableIdent(table))
	b.WriteString(" t WHERE ")
	for i, d := range dedupe {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(ident(d))
		b.WriteString(" = v.")
		b.WriteString(ident(d))
	}
	b.WriteString(")")
	return b.String(), args
}
