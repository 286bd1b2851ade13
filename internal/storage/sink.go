package storage

import (
	"context"
	"fmt"
	"strings"
)

// MaxParams bounds the bind parameters of one INSERT. SQL Server allows
// 2100 per statement; the other backends allow more, so one bound serves all.
const MaxParams = 2000

// DataTable describes the table receiving a normalized frame. dateColumns
// get the date type, hashColumn (if not empty) becomes a unique hash key and
// everything else is text.
func DataTable(name string, columns []string, dateColumns map[string]bool, hashColumn string) TableSpec {
	t := TableSpec{Name: name}
	for _, c := range columns {
		spec := ColumnSpec{Name: c, Type: TypeText}
		switch {
		case c == hashColumn:
			spec.Type = TypeHash
			spec.Nullable = Nullable(false)
		case dateColumns[c]:
			spec.Type = TypeDate
		}
		t.Columns = append(t.Columns, spec)
	}
	if hashColumn != "" {
		t.Constraints = []ConstraintSpec{{Kind: "unique", Columns: []string{hashColumn}}}
	}
	return t
}

// Outcome columns, in insert order.
var OutcomeColumns = []string{
	"run_id", "job", "source_path", "column_name", "mode", "outcome",
	"format", "format_source", "sibling", "error_kind",
	"parsed", "nulls", "corrected", "unparseable", "created_at",
}

// OutcomesTable describes the audit table with one row per column report.
// (run_id, column_name) is unique, so replaying a run's outcomes is a no-op.
func OutcomesTable(name string) TableSpec {
	notNull := Nullable(false)
	return TableSpec{
		Name: name,
		Columns: []ColumnSpec{
			{Name: "run_id", Type: TypeKey, Nullable: notNull},
			{Name: "job", Type: TypeText, Nullable: notNull},
			{Name: "source_path", Type: TypeText},
			{Name: "column_name", Type: TypeKey, Nullable: notNull},
			{Name: "mode", Type: TypeText},
			{Name: "outcome", Type: TypeText, Nullable: notNull},
			{Name: "format", Type: TypeText},
			{Name: "format_source", Type: TypeText},
			{Name: "sibling", Type: TypeText},
			{Name: "error_kind", Type: TypeText},
			{Name: "parsed", Type: TypeInteger},
			{Name: "nulls", Type: TypeInteger},
			{Name: "corrected", Type: TypeInteger},
			{Name: "unparseable", Type: TypeInteger},
			{Name: "created_at", Type: TypeTimestamp, Nullable: notNull},
		},
		Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"run_id", "column_name"}}},
	}
}

// InsertBatched splits rows into statements that stay under MaxParams and
// returns the total inserted count. It stops at the first failing batch.
func InsertBatched(ctx context.Context, repo Repository, table string, columns []string, rows [][]any, dedupe []string) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("storage: insert into %s without columns", table)
	}
	per := BatchRows(len(columns))
	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		n, err := repo.InsertRows(ctx, table, columns, rows[start:end], dedupe)
		total += n
		if err != nil {
			return total, fmt.Errorf("insert %s rows %d-%d: %w", table, start, end-1, err)
		}
	}
	return total, nil
}

// BatchRows is the number of rows per statement for a column count.
func BatchRows(columns int) int {
	if columns <= 0 {
		return 1
	}
	return max(1, min(1000, MaxParams/columns))
}

// DedupeRows keeps the first row of every dedupe key, in input order. Keys
// compare by their printed values.
func DedupeRows(rows [][]any, columns, dedupe []string) ([][]any, error) {
	if len(dedupe) == 0 {
		return rows, nil
	}
	idx := make([]int, len(dedupe))
	for i, d := range dedupe {
		idx[i] = -1
		for j, c := range columns {
			if c == d {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("dedupe column %q is not an insert column", d)
		}
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, r := range rows {
		b.Reset()
		for i, j := range idx {
			if i > 0 {
				b.WriteByte(0x1f)
			}
			fmt.Fprint(&b, r[j])
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}
