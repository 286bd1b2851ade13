// Package csv reads delimited operator exports into pooled rows.
//
// Exports arrive in UTF-8, Latin-1 or Windows-1252, with ";" or "," or tab
// separators, sometimes with junk lines above the header. Options (from
// parser.options in the pipeline config):
//
//	encoding     utf-8 | latin1 | windows-1252 | auto   (default auto)
//	comma        a single character or "auto"           (default auto)
//	has_header   bool                                   (default true)
//	columns      names used when has_header is false
//	header_map   raw or folded header -> key
//	skip_rows    records to discard before the header   (default 0)
//	trim_space   bool                                   (default true)
//	lazy_quotes  bool                                   (default false)
//	scrub        remove ="..." guards, quotes, NBSP, R$ (default false)
package csv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"datenorm/internal/config"
	"datenorm/internal/frame"
	"datenorm/internal/parser/charset"
	"datenorm/internal/parser/header"
	"datenorm/internal/transformer"
)

const sniffBytes = 64 << 10

// Stream is an opened CSV source whose header has been consumed.
type Stream struct {
	cr      *csv.Reader
	columns []string
	line    int
	trim    bool
	scrub   bool
}

// Open wraps src with the configured decoder, sniffs the delimiter if
// asked, skips leading junk and reads the header.
func Open(src io.Reader, opt config.Options) (*Stream, error) {
	br := bufio.NewReaderSize(src, sniffBytes)
	peek, err := br.Peek(sniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("csv peek: %w", err)
	}

	enc, err := charset.Pick(opt.String("encoding", "auto"), peek, len(peek) == sniffBytes)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	r := charset.NewReader(br, enc)

	skip := opt.Int("skip_rows", 0)
	comma := opt.Rune("comma", 0)
	if comma == 0 || opt.String("comma", "") == "auto" {
		comma = SniffDelimiter(dropLines(peek, skip))
	}

	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1

	s := &Stream{
		cr:    cr,
		trim:  opt.Bool("trim_space", true),
		scrub: opt.Bool("scrub", false),
	}

	for i := skip; i > 0; i-- {
		if _, err := s.read(); err != nil {
			return nil, fmt.Errorf("skip row %d: %w", s.line, err)
		}
	}

	if !opt.Bool("has_header", true) {
		s.columns = opt.StringSlice("columns")
		if len(s.columns) == 0 {
			return nil, fmt.Errorf("csv: has_header=false needs a columns option")
		}
		return s, nil
	}

	hdr, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	s.columns = header.Normalizer{Aliases: opt.StringMap("header_map")}.Keys(hdr)
	return s, nil
}

func (s *Stream) read() ([]string, error) {
	s.line++
	return s.cr.Read()
}

// Columns returns the normalized header keys.
func (s *Stream) Columns() []string { return append([]string(nil), s.columns...) }

// StreamRows sends one pooled row per record to out until EOF. Malformed
// records are reported through onErr and skipped. Empty cells become nil.
//
// On cancellation the in-flight row is dropped, not pooled: a downstream
// stage may still be reading it.
func (s *Stream) StreamRows(ctx context.Context, out chan<- *transformer.Row, onErr func(line int, err error)) error {
	width := len(s.columns)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := s.read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(s.line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}
		if blank(rec) {
			continue
		}

		row := transformer.GetRow(width)
		row.Line = s.line
		for i := 0; i < width && i < len(rec); i++ {
			v := rec[i]
			if s.trim && transformer.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row.V[i] = v
			}
		}
		if s.scrub {
			transformer.ScrubRow(row)
		}

		select {
		case out <- row:
		case <-ctx.Done():
			row.Drop()
			return ctx.Err()
		}
	}
}

// ReadFrame opens src and collects every row into a frame.
func ReadFrame(ctx context.Context, src io.Reader, opt config.Options, onErr func(line int, err error)) (frame.Frame, error) {
	s, err := Open(src, opt)
	if err != nil {
		return frame.Frame{}, err
	}

	ch := make(chan *transformer.Row, 256)
	errCh := make(chan error, 1)
	go func() {
		defer close(ch)
		errCh <- s.StreamRows(ctx, ch, onErr)
	}()

	f, cerr := transformer.Collect(ctx, s.columns, ch)
	if err := <-errCh; err != nil {
		return frame.Frame{}, err
	}
	return f, cerr
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func dropLines(b []byte, n int) []byte {
	for ; n > 0; n-- {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			return nil
		}
		b = b[i+1:]
	}
	return b
}

// SniffDelimiter picks the most frequent of ';', ',', '\t' and '|' on the
// first line, ignoring quoted text. Ties go to the earlier candidate; no
// candidate at all yields ','.
func SniffDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	candidates := []byte{';', ',', '\t', '|'}
	counts := make([]int, len(candidates))
	inQuote := false
	for _, c := range sample {
		if c == '"' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		for i, d := range candidates {
			if c == d {
				counts[i]++
			}
		}
	}
	best := -1
	for i, n := range counts {
		if n > 0 && (best < 0 || n > counts[best]) {
			best = i
		}
	}
	if best < 0 {
		return ','
	}
	return rune(candidates[best])
}
