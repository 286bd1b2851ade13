package transformer

import (
	"context"

	"datenorm/internal/frame"
)

// Collect drains in into a frame with the given columns. Every row is copied
// and freed. Rows wider than columns are truncated; narrower rows are padded
// with nil.
//
// On cancellation the remaining rows are dropped (not pooled) and ctx.Err()
// is returned once in is closed.
func Collect(ctx context.Context, columns []string, in <-chan *Row) (frame.Frame, error) {
	var rows [][]any
	var err error
	for r := range in {
		if r == nil {
			continue
		}
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			r.Drop()
			continue
		}
		cp := make([]any, len(columns))
		copy(cp, r.V)
		rows = append(rows, cp)
		r.Free()
	}
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.FromRows(columns, rows), nil
}
