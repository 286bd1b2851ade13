// Package parser selects a reader for an input file and returns its rows as
// a frame.Frame keyed by normalized headers.
package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"datenorm/internal/config"
	"datenorm/internal/frame"
	csvparser "datenorm/internal/parser/csv"
	htmlparser "datenorm/internal/parser/html"
	jsonparser "datenorm/internal/parser/json"
)

// Kinds accepted by Read.
const (
	KindAuto = "auto"
	KindCSV  = "csv"
	KindHTML = "html"
	KindJSON = "json"
)

// Detect resolves "auto" by looking at the first bytes of the input; ".xls"
// exports are very often HTML tables, and a leading '[' or '{' means JSON.
func Detect(kind string, head []byte) string {
	if kind != "" && kind != KindAuto {
		return kind
	}
	if htmlparser.Sniff(head) {
		return KindHTML
	}
	if jsonparser.Sniff(head) {
		return KindJSON
	}
	return KindCSV
}

// Read parses src with the reader selected by p.Kind. onErr receives
// recoverable per-record problems (csv and json).
func Read(ctx context.Context, src io.Reader, p config.Parser, onErr func(line int, err error)) (frame.Frame, string, error) {
	br := bufio.NewReader(src)
	head, _ := br.Peek(1024)
	kind := Detect(p.Kind, head)

	var (
		f   frame.Frame
		err error
	)
	switch kind {
	case KindCSV:
		f, err = csvparser.ReadFrame(ctx, br, p.Options, onErr)
	case KindHTML:
		f, err = htmlparser.ReadFrame(ctx, br, p.Options)
	case KindJSON:
		f, err = jsonparser.ReadFrame(ctx, br, p.Options, onErr)
	default:
		return frame.Frame{}, kind, fmt.Errorf("unsupported parser kind %q", kind)
	}
	if err != nil {
		return frame.Frame{}, kind, fmt.Errorf("%s: %w", kind, err)
	}
	return f, kind, nil
}

// ReadFile opens path and calls Read. Under auto, ".html"/".htm" force the
// html reader and ".json"/".jsonl" the json reader.
func ReadFile(ctx context.Context, path string, p config.Parser, onErr func(line int, err error)) (frame.Frame, string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return frame.Frame{}, "", err
	}
	defer fh.Close()

	if p.Kind == "" || p.Kind == KindAuto {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".html", ".htm":
			p.Kind = KindHTML
		case ".json", ".jsonl":
			p.Kind = KindJSON
		}
	}
	return Read(ctx, fh, p, onErr)
}
