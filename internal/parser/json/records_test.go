package json

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"datenorm/internal/config"
)

func TestSniff(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		`[{"a":1}]`:         true,
		"\uFEFF  {\"a\":1}": true,
		"a;b\n":             false,
		"":                  false,
		"<table>":           false,
	} {
		if got := Sniff([]byte(in)); got != want {
			t.Fatalf("Sniff(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestRecords_Shapes covers the accepted root shapes.
func TestRecords_Shapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"array", `[{"a":"1"},{"a":"2"}]`, 2},
		{"envelope", `{"meta":{"n":2},"tags":["x"],"records":[{"a":"1"},{"a":"2"}],"after":[{"b":1}]}`, 2},
		{"single", `{"a":"1","tags":["x","y"]}`, 1},
		{"jsonl", "{\"a\":\"1\"}\n{\"a\":\"2\"}\n{\"a\":\"3\"}\n", 3},
		{"array_then_lines", "[{\"a\":\"1\"}]\n{\"a\":\"2\"}\n", 2},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			recs, err := Records(context.Background(), strings.NewReader(tt.in), nil)
			if err != nil {
				t.Fatalf("Records: %v", err)
			}
			if len(recs) != tt.want {
				t.Fatalf("records = %d, want %d: %v", len(recs), tt.want, recs)
			}
		})
	}
}

func TestRecords_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Records(context.Background(), strings.NewReader(`"scalar"`), nil); err == nil {
		t.Fatalf("expected root error")
	}
	if _, err := Records(context.Background(), strings.NewReader(`[{"a":1},`), nil); err == nil {
		t.Fatalf("expected truncated array error")
	}

	var lines []int
	recs, err := Records(context.Background(), strings.NewReader("{\"a\":\"1\"}\n{bad\n"), func(line int, _ error) {
		lines = append(lines, line)
	})
	if err != nil || len(recs) != 1 || !reflect.DeepEqual(lines, []int{2}) {
		t.Fatalf("recs=%d err=%v lines=%v", len(recs), err, lines)
	}
}

// TestReadFrame_Columns verifies key folding, ordering, numbers and arrays.
func TestReadFrame_Columns(t *testing.T) {
	t.Parallel()

	in := `[
		{"Nome": "Ana", "Data de Nascimento": "01021990", "Codigo": 1021990, "Tags": ["a","b"], "Ativo": true},
		{"Nome": "Bia", "Data de Nascimento": "  ", "Extra": {"k": 1}}
	]`
	f, err := ReadFrame(context.Background(), strings.NewReader(in), config.Options{"array_join_separator": "|"}, nil)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	want := []string{"ativo", "codigo", "data_de_nascimento", "nome", "tags", "extra"}
	if !reflect.DeepEqual(f.Columns(), want) {
		t.Fatalf("Columns = %v, want %v", f.Columns(), want)
	}
	rows := f.Rows()
	if !reflect.DeepEqual(rows[0], []any{"true", "1021990", "01021990", "Ana", "a|b", nil}) {
		t.Fatalf("row 0 = %#v", rows[0])
	}
	if !reflect.DeepEqual(rows[1], []any{nil, nil, nil, "Bia", nil, `{"k":1}`}) {
		t.Fatalf("row 1 = %#v", rows[1])
	}

	only, err := ReadFrame(context.Background(), strings.NewReader(in), config.Options{"columns": "nome,data_de_nascimento"}, nil)
	if err != nil {
		t.Fatalf("ReadFrame with columns: %v", err)
	}
	if !reflect.DeepEqual(only.Columns(), []string{"nome", "data_de_nascimento"}) {
		t.Fatalf("Columns = %v", only.Columns())
	}

	if _, err := ReadFrame(context.Background(), strings.NewReader(""), nil, nil); err == nil {
		t.Fatalf("expected error for no records and no columns")
	}
}
