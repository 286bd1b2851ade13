// Package frame holds a small column-oriented table used between the readers,
// the date engine and the writers.
//
// A Frame is immutable from the caller's point of view: every "With" method
// returns a new Frame and never writes into slices shared with the receiver.
package frame

import (
	"fmt"
	"slices"
)

// Frame is an ordered set of equally long named columns.
type Frame struct {
	columns []string
	data    map[string][]any
	rows    int
}

// New builds a frame from named columns. Every column listed in columns must
// be present in data and all columns must have the same length.
func New(columns []string, data map[string][]any) (Frame, error) {
	f := Frame{columns: slices.Clone(columns), data: make(map[string][]any, len(columns)), rows: -1}
	for _, c := range columns {
		v, ok := data[c]
		if !ok {
			return Frame{}, fmt.Errorf("frame: column %q has no data", c)
		}
		if _, dup := f.data[c]; dup {
			return Frame{}, fmt.Errorf("frame: duplicate column %q", c)
		}
		if f.rows >= 0 && len(v) != f.rows {
			return Frame{}, fmt.Errorf("frame: column %q has %d rows, want %d", c, len(v), f.rows)
		}
		f.rows = len(v)
		f.data[c] = slices.Clone(v)
	}
	if f.rows < 0 {
		f.rows = 0
	}
	return f, nil
}

// FromRows transposes row-major data. Short rows are padded with nil and
// extra cells are ignored.
func FromRows(columns []string, rows [][]any) Frame {
	f := Frame{columns: slices.Clone(columns), data: make(map[string][]any, len(columns)), rows: len(rows)}
	for ci, c := range columns {
		col := make([]any, len(rows))
		for ri, r := range rows {
			if ci < len(r) {
				col[ri] = r[ci]
			}
		}
		f.data[c] = col
	}
	return f
}

// Columns returns the column names in order.
func (f Frame) Columns() []string { return slices.Clone(f.columns) }

// Len is the number of rows.
func (f Frame) Len() int { return f.rows }

// Has reports whether the named column exists.
func (f Frame) Has(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns a copy of the named column.
func (f Frame) Column(name string) ([]any, bool) {
	v, ok := f.data[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// WithColumn returns a frame where name holds values. A new name is appended
// at the end. values must have Len() elements unless the frame has no
// columns yet.
func (f Frame) WithColumn(name string, values []any) (Frame, error) {
	if len(f.columns) > 0 && len(values) != f.rows {
		return Frame{}, fmt.Errorf("frame: column %q has %d rows, want %d", name, len(values), f.rows)
	}
	out := f.shallowCopy()
	if _, ok := out.data[name]; !ok {
		out.columns = append(out.columns, name)
	}
	out.data[name] = slices.Clone(values)
	out.rows = len(values)
	return out, nil
}

// Drop returns a frame without the named column. Missing names are ignored.
func (f Frame) Drop(name string) Frame {
	if !f.Has(name) {
		return f
	}
	out := f.shallowCopy()
	delete(out.data, name)
	out.columns = slices.DeleteFunc(out.columns, func(c string) bool { return c == name })
	return out
}

// Rows returns the data in row-major order, one slice per row, with cells in
// Columns order.
func (f Frame) Rows() [][]any {
	out := make([][]any, f.rows)
	for r := 0; r < f.rows; r++ {
		row := make([]any, len(f.columns))
		for c, name := range f.columns {
			row[c] = f.data[name][r]
		}
		out[r] = row
	}
	return out
}

// shallowCopy shares column slices; callers must replace, never write into,
// the shared slices.
func (f Frame) shallowCopy() Frame {
	out := Frame{columns: slices.Clone(f.columns), data: make(map[string][]any, len(f.data)+1), rows: f.rows}
	for k, v := range f.data {
		out.data[k] = v
	}
	return out
}
