package storage

import (
	"fmt"
	"strings"
)

// Logical column types. Each backend maps them to its own DDL.
const (
	TypeText      = "text"
	TypeDate      = "date"
	TypeInteger   = "integer"
	TypeTimestamp = "timestamp"
	TypeHash      = "hash" // 64 hex characters
	TypeKey       = "key"  // short text usable in a UNIQUE constraint
)

// TableSpec describes a table the sink writes to.
type TableSpec struct {
	Name        string
	Columns     []ColumnSpec
	Constraints []ConstraintSpec
}

// ColumnSpec is one column. Nullable defaults to true.
type ColumnSpec struct {
	Name     string
	Type     string
	Nullable *bool
}

// ConstraintSpec is a table constraint. Only "unique" is supported.
type ConstraintSpec struct {
	Kind    string
	Columns []string
}

// ColumnNames returns the column names in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks names, types and constraint references.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%s: no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%s: column name is empty", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
		switch c.Type {
		case TypeText, TypeDate, TypeInteger, TypeTimestamp, TypeHash, TypeKey:
		default:
			return fmt.Errorf("%s.%s: unsupported type %q", t.Name, c.Name, c.Type)
		}
	}
	for _, con := range t.Constraints {
		if con.Kind != "unique" {
			return fmt.Errorf("%s: unsupported constraint kind %q", t.Name, con.Kind)
		}
		if len(con.Columns) == 0 {
			return fmt.Errorf("%s: unique constraint without columns", t.Name)
		}
		for _, c := range con.Columns {
			if !seen[c] {
				return fmt.Errorf("%s: constraint column %q is not a table column", t.Name, c)
			}
		}
	}
	return nil
}

// Nullable returns a pointer for ColumnSpec.Nullable.
func Nullable(v bool) *bool { return &v }

// IsNullable applies the default.
func (c ColumnSpec) IsNullable() bool { return c.Nullable == nil || *c.Nullable }

// SplitQualified splits "schema.table". Names without exactly one dot have no
// schema.
func SplitQualified(name string) (schema, table string) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	if len(parts) != 2 {
		return "", strings.TrimSpace(name)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
