// Package html reads the HTML tables some operators ship with an ".xls"
// extension.
//
// Options:
//
//	encoding     as in the csv reader                 (default auto)
//	table_index  which <table> to read, 0-based        (default: widest)
//	header_map   raw or folded header -> key
//	skip_rows    <tr> rows to discard before the header (default 0)
//	scrub        remove ="..." guards, quotes, NBSP, R$ (default false)
package html

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"datenorm/internal/config"
	"datenorm/internal/frame"
	"datenorm/internal/parser/charset"
	"datenorm/internal/parser/header"
	"datenorm/internal/transformer"

	"github.com/PuerkitoBio/goquery"
)

// Sniff reports whether b looks like markup rather than delimited text.
func Sniff(b []byte) bool {
	b = bytes.TrimLeft(bytes.TrimPrefix(b, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(b) == 0 || b[0] != '<' {
		return false
	}
	head := bytes.ToLower(b[:min(len(b), 512)])
	for _, tag := range [][]byte{[]byte("<html"), []byte("<table"), []byte("<!doctype"), []byte("<meta"), []byte("<?xml")} {
		if bytes.Contains(head, tag) {
			return true
		}
	}
	return false
}

// Table is a parsed HTML table whose header has been normalized.
type Table struct {
	columns []string
	rows    [][]string
	first   int // source row number of rows[0]
	scrub   bool
}

// Parse decodes src and selects the table to read.
func Parse(src io.Reader, opt config.Options) (*Table, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	enc, err := charset.Pick(opt.String("encoding", "auto"), raw, false)
	if err != nil {
		return nil, fmt.Errorf("html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(charset.NewReader(bytes.NewReader(raw), enc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := pickTable(doc, opt.Int("table_index", -1))
	if table == nil {
		return nil, fmt.Errorf("html: no <table> found")
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Rows of nested tables belong to those tables.
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		var cells []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(c.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})

	skip := opt.Int("skip_rows", 0)
	if skip >= len(rows) {
		return nil, fmt.Errorf("html: table has %d rows, nothing left after skip_rows=%d", len(rows), skip)
	}
	return &Table{
		columns: header.Normalizer{Aliases: opt.StringMap("header_map")}.Keys(rows[skip]),
		rows:    rows[skip+1:],
		first:   skip + 2,
		scrub:   opt.Bool("scrub", false),
	}, nil
}

// Columns returns the normalized header keys.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// StreamRows sends one pooled row per data <tr>. Empty cells become nil.
func (t *Table) StreamRows(ctx context.Context, out chan<- *transformer.Row) error {
	for i, cells := range t.rows {
		row := transformer.GetRow(len(t.columns))
		row.Line = t.first + i
		for c := 0; c < len(t.columns) && c < len(cells); c++ {
			if cells[c] != "" {
				row.V[c] = cells[c]
			}
		}
		if t.scrub {
			transformer.ScrubRow(row)
		}
		select {
		case out <- row:
		case <-ctx.Done():
			row.Drop()
			return ctx.Err()
		}
	}
	return nil
}

// ReadFrame parses src and collects the selected table into a frame.
func ReadFrame(ctx context.Context, src io.Reader, opt config.Options) (frame.Frame, error) {
	t, err := Parse(src, opt)
	if err != nil {
		return frame.Frame{}, err
	}
	ch := make(chan *transformer.Row, 256)
	errCh := make(chan error, 1)
	go func() {
		defer close(ch)
		errCh <- t.StreamRows(ctx, ch)
	}()
	f, cerr := transformer.Collect(ctx, t.columns, ch)
	if err := <-errCh; err != nil {
		return frame.Frame{}, err
	}
	return f, cerr
}

// pickTable returns the table at idx, or the one with the most cells in its
// first row when idx < 0.
func pickTable(doc *goquery.Document, idx int) *goquery.Selection {
	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil
	}
	if idx >= 0 {
		if idx >= tables.Length() {
			return nil
		}
		return tables.Eq(idx)
	}
	best, bestWidth := 0, -1
	tables.Each(func(i int, t *goquery.Selection) {
		w := t.Find("tr").First().ChildrenFiltered("th, td").Length()
		if w > bestWidth {
			best, bestWidth = i, w
		}
	})
	return tables.Eq(best)
}
