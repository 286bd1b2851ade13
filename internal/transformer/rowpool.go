// Package transformer holds the row-level plumbing between the readers and
// the date engine: a pooled Row, the collector that turns a row stream into a
// frame.Frame, cell scrubbing and the row hash used by the database sinks.
package transformer

import "sync"

// Row is one positional record coming out of a reader.
//
// Ownership passes with the channel send. The last holder calls Free on the
// normal path and Drop when unwinding after cancellation, so a row that a
// slower stage may still be reading is never handed out again by GetRow.
type Row struct {
	V    []any
	Line int // 1-based source record number, 0 when unknown
}

var rowPool sync.Pool

// GetRow returns a row with len(V) == n and every cell nil.
func GetRow(n int) *Row {
	r, _ := rowPool.Get().(*Row)
	if r == nil {
		return &Row{V: make([]any, n)}
	}
	if cap(r.V) < n {
		r.V = make([]any, n)
	}
	r.V = r.V[:n]
	clear(r.V)
	r.Line = 0
	return r
}

// Free returns r to the pool.
func (r *Row) Free() { rowPool.Put(r) }

// Drop releases r without pooling it.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
}
