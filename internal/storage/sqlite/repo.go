// Package sqlite is the file-backed sink, on database/sql with the pure-Go
// modernc driver. It is what local runs and tests use.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"datenorm/internal/storage"

	"github.com/golang-sql/civil"
	_ "modernc.org/sqlite"
)

func init() {
	storage.Register("sqlite", New)
}

// Repo implements storage.Repository.
type Repo struct {
	db *sql.DB
}

// New opens the database file named by cfg.DSN (":memory:" works). One
// connection is kept so an in-memory database survives between statements.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return &Repo{db: db}, nil
}

// Close closes the database.
func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable runs CREATE TABLE IF NOT EXISTS.
func (r *Repo) EnsureTable(ctx context.Context, t storage.TableSpec) error {
	q, err := buildCreateSQL(t)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", t.Name, err)
	}
	return nil
}

// InsertRows issues one multi-row INSERT, OR IGNORE when dedupe is set.
// Conflicts are resolved by the table's unique constraints.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupe []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	q, args := buildInsertSQL(table, columns, rows, len(dedupe) > 0)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableIdent flattens "schema.table" to "schema_table"; attached databases
// are not used.
func tableIdent(name string) string {
	schema, table := storage.SplitQualified(name)
	if schema != "" {
		table = schema + "_" + table
	}
	return ident(table)
}

// sqlType keeps dates as TEXT. A DATE declaration makes the driver return
// time.Time on scan.
func sqlType(t string) string {
	switch t {
	case storage.TypeInteger:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func buildCreateSQL(t storage.TableSpec) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
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
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", tableIdent(t.Name), strings.Join(defs, ", ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any, ignore bool) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT ")
	if ignore {
		b.WriteString("OR IGNORE ")
	}
	b.WriteString("INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
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
			b.WriteByte('?')
			args = append(args, value(row[j]))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}

// value stores dates as ISO text so they sort and compare as strings.
func value(v any) any {
	switch x := v.(type) {
	case civil.Date:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int:
		return int64(x)
	default:
		return v
	}
}
