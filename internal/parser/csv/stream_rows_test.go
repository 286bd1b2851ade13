package csv

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"datenorm/internal/config"
	"datenorm/internal/transformer"

	"golang.org/x/text/encoding/charmap"
)

// TestSniffDelimiter covers the candidates, quoting and the fallback.
func TestSniffDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{"semicolon", "nome;nascimento;data_inicio\nA;1;2", ';'},
		{"comma", "nome,nascimento\n", ','},
		{"tab", "nome\tnascimento\tx\n", '\t'},
		{"pipe", "a|b|c", '|'},
		{"quoted_commas_ignored", `"Silva, Ana";"01,02";x` + "\n", ';'},
		{"none", "single\n", ','},
		{"only_first_line", "a;b\nc,d,e,f,g", ';'},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SniffDelimiter([]byte(tt.sample)); got != tt.want {
				t.Fatalf("SniffDelimiter = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestReadFrame_SemicolonLatin1 reads a Windows-1252 export with junk above
// the header, auto delimiter and encoding.
func TestReadFrame_SemicolonLatin1(t *testing.T) {
	t.Parallel()

	utf := "Relatório de beneficiários\n" +
		"Nome;Data de Nascimento;Inclusão Plano\n" +
		"José;01021990; 15/03/2020 \n" +
		";;\n" +
		"Ana;;01/04/2021\n"
	enc, err := charmap.Windows1252.NewEncoder().String(utf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	f, err := ReadFrame(context.Background(), strings.NewReader(enc), config.Options{"skip_rows": float64(1)}, nil)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	wantCols := []string{"nome", "data_de_nascimento", "inclusao_plano"}
	if got := f.Columns(); strings.Join(got, ",") != strings.Join(wantCols, ",") {
		t.Fatalf("Columns = %v, want %v", got, wantCols)
	}
	if f.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (blank record skipped)", f.Len())
	}
	nome, _ := f.Column("nome")
	if nome[0] != "José" {
		t.Fatalf("nome[0] = %q, want José", nome[0])
	}
	nasc, _ := f.Column("data_de_nascimento")
	if nasc[1] != nil {
		t.Fatalf("empty cell = %#v, want nil", nasc[1])
	}
	inc, _ := f.Column("inclusao_plano")
	if inc[0] != "15/03/2020" {
		t.Fatalf("trimmed cell = %q", inc[0])
	}
}

// TestReadFrame_ScrubAndHeaderMap verifies scrub and header aliases.
func TestReadFrame_ScrubAndHeaderMap(t *testing.T) {
	t.Parallel()

	in := "Dt. Nasc.,Valor\n\"=\"\"01021990\"\"\",R$ 10\n"
	opt := config.Options{
		"encoding":   "utf-8",
		"comma":      ",",
		"scrub":      true,
		"header_map": map[string]any{"Dt. Nasc.": "nascimento"},
	}
	f, err := ReadFrame(context.Background(), strings.NewReader(in), opt, nil)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	nasc, ok := f.Column("nascimento")
	if !ok {
		t.Fatalf("alias not applied: %v", f.Columns())
	}
	if nasc[0] != "01021990" {
		t.Fatalf("scrubbed cell = %q", nasc[0])
	}
	valor, _ := f.Column("valor")
	if valor[0] != "10" {
		t.Fatalf("scrubbed currency = %q", valor[0])
	}
}

// TestOpen_NoHeader uses the configured column list.
func TestOpen_NoHeader(t *testing.T) {
	t.Parallel()

	opt := config.Options{"has_header": false, "columns": []any{"nome", "nascimento"}}
	s, err := Open(strings.NewReader("Ana;01021990\n"), opt)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	out := make(chan *transformer.Row, 4)
	if err := s.StreamRows(context.Background(), out, nil); err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	close(out)
	r := <-out
	if r == nil || r.V[1] != "01021990" || r.Line != 1 {
		t.Fatalf("row = %+v", r)
	}

	if _, err := Open(strings.NewReader("a\n"), config.Options{"has_header": false}); err == nil {
		t.Fatalf("expected error without columns")
	}
}

// TestOpen_Errors covers an unknown encoding and a missing header.
func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Open(strings.NewReader("a;b\n"), config.Options{"encoding": "ebcdic"}); err == nil {
		t.Fatalf("expected unsupported encoding error")
	}
	if _, err := Open(bytes.NewReader(nil), nil); err == nil {
		t.Fatalf("expected header error on empty input")
	}
}

// TestStreamRows_ReportsMalformed verifies bad records go to onErr and the
// stream continues.
func TestStreamRows_ReportsMalformed(t *testing.T) {
	t.Parallel()

	in := "a;b\n1;\"x\"y\n2;3\n"
	s, err := Open(strings.NewReader(in), config.Options{"comma": ";"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var lines []int
	out := make(chan *transformer.Row, 4)
	if err := s.StreamRows(context.Background(), out, func(line int, _ error) { lines = append(lines, line) }); err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	close(out)
	var got []*transformer.Row
	for r := range out {
		got = append(got, r)
	}
	if len(lines) != 1 || lines[0] != 2 {
		t.Fatalf("error lines = %v, want [2]", lines)
	}
	if len(got) != 1 || got[0].V[0] != "2" {
		t.Fatalf("rows = %v", got)
	}
}

// TestStreamRows_Canceled stops on a canceled context.
func TestStreamRows_Canceled(t *testing.T) {
	t.Parallel()

	s, err := Open(strings.NewReader("a\n1\n2\n"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.StreamRows(ctx, make(chan *transformer.Row), nil); err == nil {
		t.Fatalf("expected context error")
	}
}
