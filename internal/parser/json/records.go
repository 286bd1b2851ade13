// Package json reads exports shipped as JSON records.
//
// Accepted shapes:
//   - a root array of objects
//   - an envelope object whose first array-of-objects field holds the
//     records (other fields are skipped)
//   - a single object, one record
//   - any of the above followed by more objects (JSON Lines)
//
// Options:
//
//	columns              keys to keep, in order (default: every key seen,
//	                     first record's keys sorted, later keys appended)
//	header_map           raw or folded key -> column key
//	array_join_separator joins arrays of scalars (default ",")
//	scrub                as in the csv reader (default false)
//
// Numbers keep their literal text, so a code written as 1021990 stays
// "1021990"; exporters that drop leading zeros must quote their dates.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"datenorm/internal/config"
	"datenorm/internal/frame"
	"datenorm/internal/parser/header"
	"datenorm/internal/transformer"
)

// Sniff reports whether b starts with a JSON array or object.
func Sniff(b []byte) bool {
	s := strings.TrimLeft(strings.TrimPrefix(string(b[:min(len(b), 64)]), "\uFEFF"), " \t\r\n")
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")
}

type reader struct {
	ctx   context.Context
	dec   *json.Decoder
	emit  func(map[string]any)
	onErr func(line int, err error)
	line  int
}

// Records decodes every record of src in order. Malformed trailing records
// are reported through onErr and stop the read.
func Records(ctx context.Context, src io.Reader, onErr func(line int, err error)) ([]map[string]any, error) {
	var recs []map[string]any
	r := &reader{ctx: ctx, dec: json.NewDecoder(src), onErr: onErr}
	r.dec.UseNumber()
	r.emit = func(obj map[string]any) { recs = append(recs, obj) }

	tok, err := r.dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("json: first token: %w", err)
	}
	switch tok {
	case json.Delim('['):
		if err := r.objects(); err != nil {
			return nil, err
		}
		if err := r.expect(json.Delim(']')); err != nil {
			return nil, err
		}
	case json.Delim('{'):
		if err := r.envelopeOrSingle(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("json: root must be an object or array, got %v", tok)
	}
	return recs, r.trailing()
}

// objects reads array elements up to, not including, the closing ']'.
func (r *reader) objects() error {
	for r.dec.More() {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		var obj map[string]any
		if err := r.dec.Decode(&obj); err != nil {
			return fmt.Errorf("json: record %d: %w", r.line+1, err)
		}
		r.line++
		r.emit(obj)
	}
	return nil
}

// envelopeOrSingle is called after the root '{'. The first field holding an
// array of objects becomes the record stream; without one, the root object
// is the single record.
func (r *reader) envelopeOrSingle() error {
	single := map[string]any{}
	streamed := false
	for r.dec.More() {
		keyTok, err := r.dec.Token()
		if err != nil {
			return fmt.Errorf("json: object key: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := r.dec.Decode(&raw); err != nil {
			return fmt.Errorf("json: value of %q: %w", key, err)
		}
		if streamed {
			continue
		}
		var arr []map[string]any
		if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
			// Arrays of scalars fail to decode here and stay fields.
			if err := decodeNumbers(raw, &arr); err == nil && len(arr) > 0 {
				for _, obj := range arr {
					r.line++
					r.emit(obj)
				}
				streamed = true
				continue
			}
		}
		var v any
		if err := decodeNumbers(raw, &v); err != nil {
			return fmt.Errorf("json: value of %q: %w", key, err)
		}
		single[key] = v
	}
	if err := r.expect(json.Delim('}')); err != nil {
		return err
	}
	if !streamed {
		r.line++
		r.emit(single)
	}
	return nil
}

func (r *reader) trailing() error {
	for {
		var obj map[string]any
		err := r.dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if r.onErr != nil {
				r.onErr(r.line+1, err)
			}
			return nil
		}
		r.line++
		r.emit(obj)
	}
}

func (r *reader) expect(d json.Delim) error {
	tok, err := r.dec.Token()
	if err != nil {
		return fmt.Errorf("json: want %v: %w", d, err)
	}
	if tok != d {
		return fmt.Errorf("json: want %v, got %v", d, tok)
	}
	return nil
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}

// ReadFrame decodes src and lays the records out as a frame.
func ReadFrame(ctx context.Context, src io.Reader, opt config.Options, onErr func(line int, err error)) (frame.Frame, error) {
	recs, err := Records(ctx, src, onErr)
	if err != nil {
		return frame.Frame{}, err
	}
	norm := header.Normalizer{Aliases: opt.StringMap("header_map")}
	sep := opt.String("array_join_separator", ",")

	keyed := make([]map[string]any, len(recs))
	var order []string
	seen := map[string]bool{}
	for i, rec := range recs {
		keyed[i] = make(map[string]any, len(rec))
		raw := make([]string, 0, len(rec))
		for k := range rec {
			raw = append(raw, k)
		}
		sort.Strings(raw)
		for _, k := range raw {
			col := norm.Key(k)
			if col == "" {
				continue
			}
			keyed[i][col] = scalar(rec[k], sep)
			if !seen[col] {
				seen[col] = true
				order = append(order, col)
			}
		}
	}

	columns := opt.StringSlice("columns")
	if len(columns) == 0 {
		columns = order
	}
	if len(columns) == 0 {
		return frame.Frame{}, fmt.Errorf("json: no records and no columns option")
	}

	scrub := opt.Bool("scrub", false)
	rows := make([][]any, 0, len(keyed))
	for _, rec := range keyed {
		row := &transformer.Row{V: make([]any, len(columns))}
		for c, name := range columns {
			row.V[c] = rec[name]
		}
		if scrub {
			transformer.ScrubRow(row)
		}
		rows = append(rows, row.V)
	}
	return frame.FromRows(columns, rows), nil
}

// scalar flattens one JSON value into a frame cell: strings and numbers as
// text, booleans as "true"/"false", arrays of scalars joined by sep and
// objects re-encoded as JSON.
func scalar(v any, sep string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return x
	case json.Number:
		return x.String()
	case bool:
		return fmt.Sprint(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if e == nil {
				continue
			}
			if _, nested := e.(map[string]any); nested {
				b, _ := json.Marshal(x)
				return string(b)
			}
			parts = append(parts, fmt.Sprint(e))
		}
		if len(parts) == 0 {
			return nil
		}
		return strings.Join(parts, sep)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
