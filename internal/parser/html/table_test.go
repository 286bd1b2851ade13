package html

import (
	"context"
	"strings"
	"testing"

	"datenorm/internal/config"

	"golang.org/x/text/encoding/charmap"
)

const export = `<html><head><meta charset="iso-8859-1"></head><body>
<table><tr><td>Relatório</td></tr></table>
<table>
  <tr><th>Nome</th><th>Data de Nascimento</th><th>Competência</th></tr>
  <tr><td>José</td><td> 01/02/1990 </td><td>07/2023</td></tr>
  <tr><td>Ana</td><td></td><td>="08/2023"</td></tr>
</table>
</body></html>`

// TestSniff distinguishes markup from delimited text.
func TestSniff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{export, true},
		{"\xef\xbb\xbf  <TABLE><tr><td>a</td></tr></TABLE>", true},
		{"<!DOCTYPE html><p>x</p>", true},
		{"nome;nascimento\n", false},
		{"<b>not a table doc", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Sniff([]byte(tt.in)); got != tt.want {
			t.Fatalf("Sniff(%.20q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestReadFrame_WidestTable picks the data table, folds headers, decodes
// Windows-1252 and scrubs cells.
func TestReadFrame_WidestTable(t *testing.T) {
	t.Parallel()

	latin, err := charmap.Windows1252.NewEncoder().String(export)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := ReadFrame(context.Background(), strings.NewReader(latin), config.Options{"scrub": true})
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got := strings.Join(f.Columns(), ","); got != "nome,data_de_nascimento,competencia" {
		t.Fatalf("Columns = %s", got)
	}
	if f.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.Len())
	}
	nome, _ := f.Column("nome")
	if nome[0] != "José" {
		t.Fatalf("nome[0] = %q", nome[0])
	}
	nasc, _ := f.Column("data_de_nascimento")
	if nasc[0] != "01/02/1990" || nasc[1] != nil {
		t.Fatalf("nascimento = %#v", nasc)
	}
	comp, _ := f.Column("competencia")
	if comp[1] != "08/2023" {
		t.Fatalf("scrubbed competencia = %q", comp[1])
	}
}

// TestParse_TableIndexAndErrors covers explicit selection and failures.
func TestParse_TableIndexAndErrors(t *testing.T) {
	t.Parallel()

	tbl, err := Parse(strings.NewReader(export), config.Options{"table_index": float64(0)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tbl.Columns(); len(got) != 1 || got[0] != "relatorio" {
		t.Fatalf("Columns = %v", got)
	}

	if _, err := Parse(strings.NewReader("<html><p>x</p></html>"), nil); err == nil {
		t.Fatalf("expected error without tables")
	}
	if _, err := Parse(strings.NewReader(export), config.Options{"table_index": float64(5)}); err == nil {
		t.Fatalf("expected error for out-of-range table_index")
	}
	if _, err := Parse(strings.NewReader(export), config.Options{"skip_rows": float64(9)}); err == nil {
		t.Fatalf("expected error when skip_rows consumes the table")
	}
}
