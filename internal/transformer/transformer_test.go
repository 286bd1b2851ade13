package transformer

import (
	"context"
	"testing"

	"datenorm/internal/frame"

	"github.com/golang-sql/civil"
)

// TestScrub covers the residue removed from spreadsheet exports.
func TestScrub(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{`="01021990"`, "01021990"},
		{"'15/03/2020", "15/03/2020"},
		{" 01/02/2020 ", "01/02/2020"},
		{"R$ 1.234,00", "1.234,00"},
		{"  plain  ", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Scrub(tt.in); got != tt.want {
				t.Fatalf("Scrub(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestScrubRow verifies string cells are scrubbed, emptied cells become nil
// and non-string cells are untouched.
func TestScrubRow(t *testing.T) {
	t.Parallel()

	r := &Row{V: []any{`="123"`, `""`, 42, nil}}
	ScrubRow(r)
	if r.V[0] != "123" || r.V[1] != nil || r.V[2] != 42 || r.V[3] != nil {
		t.Fatalf("ScrubRow = %#v", r.V)
	}
}

// TestGetRow_ZeroesReusedRows verifies a pooled row never leaks old cells.
func TestGetRow_ZeroesReusedRows(t *testing.T) {
	t.Parallel()

	r := GetRow(3)
	r.V[0], r.V[1], r.V[2] = "a", "b", "c"
	r.Line = 9
	r.Free()

	r2 := GetRow(2)
	if len(r2.V) != 2 || r2.V[0] != nil || r2.V[1] != nil || r2.Line != 0 {
		t.Fatalf("GetRow reused dirty row: %#v line=%d", r2.V, r2.Line)
	}
}

// TestCollect builds a frame from a row stream, padding short rows.
func TestCollect(t *testing.T) {
	t.Parallel()

	in := make(chan *Row, 3)
	r1 := GetRow(2)
	r1.V[0], r1.V[1] = "01021990", "x"
	r2 := &Row{V: []any{"02031991"}}
	in <- r1
	in <- nil
	in <- r2
	close(in)

	f, err := Collect(context.Background(), []string{"nascimento", "nome"}, in)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.Len())
	}
	nome, _ := f.Column("nome")
	if nome[0] != "x" || nome[1] != nil {
		t.Fatalf("nome = %#v", nome)
	}
}

// TestCollect_Canceled verifies a canceled context drains the channel and
// reports the cancellation.
func TestCollect_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan *Row, 1)
	in <- &Row{V: []any{"a"}}
	close(in)

	if _, err := Collect(ctx, []string{"a"}, in); err == nil {
		t.Fatalf("expected context error")
	}
}

// TestHashFrame verifies determinism, nil vs empty and that the hash column
// is excluded from its own input.
func TestHashFrame(t *testing.T) {
	t.Parallel()

	d := civil.Date{Year: 1990, Month: 2, Day: 1}
	f, err := frame.New([]string{"id", "nascimento"}, map[string][]any{
		"id":         {"1", "1", ""},
		"nascimento": {d, d, nil},
	})
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}

	out, err := HashFrame(f, HashSpec{TrimSpace: true})
	if err != nil {
		t.Fatalf("HashFrame: %v", err)
	}
	h, ok := out.Column(DefaultHashColumn)
	if !ok {
		t.Fatalf("missing %s column", DefaultHashColumn)
	}
	if s, _ := h[0].(string); len(s) != 64 {
		t.Fatalf("hash = %v, want 64 hex chars", h[0])
	}
	if h[0] != h[1] {
		t.Fatalf("equal rows hashed differently")
	}
	if h[0] == h[2] {
		t.Fatalf("different rows hashed equally")
	}

	// Rehashing must ignore the existing row_hash column.
	again, err := HashFrame(out, HashSpec{TrimSpace: true})
	if err != nil {
		t.Fatalf("HashFrame again: %v", err)
	}
	h2, _ := again.Column(DefaultHashColumn)
	if h2[0] != h[0] {
		t.Fatalf("rehash changed value")
	}
}

// TestHashFrame_NilDiffersFromEmpty guards the NUL encoding of missing cells.
func TestHashFrame_NilDiffersFromEmpty(t *testing.T) {
	t.Parallel()

	f := frame.FromRows([]string{"a"}, [][]any{{nil}, {""}})
	out, err := HashFrame(f, HashSpec{Fields: []string{"a"}, TargetField: "k"})
	if err != nil {
		t.Fatalf("HashFrame: %v", err)
	}
	k, _ := out.Column("k")
	if k[0] == k[1] {
		t.Fatalf("nil and empty string produced the same hash")
	}

	if _, err := HashFrame(f, HashSpec{Fields: []string{"missing"}}); err == nil {
		t.Fatalf("expected error for missing field")
	}
}
