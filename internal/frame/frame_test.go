package frame

import (
	"reflect"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		columns []string
		data    map[string][]any
		wantErr bool
		wantLen int
	}{
		{"ok", []string{"a", "b"}, map[string][]any{"a": {1, 2}, "b": {3, 4}}, false, 2},
		{"empty", nil, nil, false, 0},
		{"missing_data", []string{"a"}, map[string][]any{}, true, 0},
		{"duplicate", []string{"a", "a"}, map[string][]any{"a": {1}}, true, 0},
		{"ragged", []string{"a", "b"}, map[string][]any{"a": {1}, "b": {1, 2}}, true, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := New(tt.columns, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && f.Len() != tt.wantLen {
				t.Fatalf("Len = %d, want %d", f.Len(), tt.wantLen)
			}
		})
	}
}

// TestFrame_Immutable verifies that callers cannot reach shared storage.
func TestFrame_Immutable(t *testing.T) {
	t.Parallel()

	src := []any{"x", "y"}
	f, err := New([]string{"a"}, map[string][]any{"a": src})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src[0] = "changed"
	col, _ := f.Column("a")
	col[1] = "changed"
	if again, _ := f.Column("a"); !reflect.DeepEqual(again, []any{"x", "y"}) {
		t.Fatalf("column = %v, want untouched", again)
	}

	g, err := f.WithColumn("a", []any{1, 2})
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if orig, _ := f.Column("a"); orig[0] != "x" {
		t.Fatalf("WithColumn modified the receiver: %v", orig)
	}
	if repl, _ := g.Column("a"); repl[0] != 1 {
		t.Fatalf("replaced column = %v", repl)
	}
}

func TestFrame_WithColumnAndDrop(t *testing.T) {
	t.Parallel()

	f := FromRows([]string{"a", "b"}, [][]any{{1, 2}, {3}})
	if got := f.Rows(); !reflect.DeepEqual(got, [][]any{{1, 2}, {3, nil}}) {
		t.Fatalf("Rows = %v", got)
	}

	g, err := f.WithColumn("c", []any{"x", "y"})
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if !reflect.DeepEqual(g.Columns(), []string{"a", "b", "c"}) {
		t.Fatalf("Columns = %v", g.Columns())
	}
	if _, err := g.WithColumn("d", []any{1}); err == nil {
		t.Fatalf("expected length error")
	}

	h := g.Drop("a")
	if h.Has("a") || !g.Has("a") {
		t.Fatalf("Drop must only affect the result")
	}
	if !reflect.DeepEqual(h.Rows(), [][]any{{2, "x"}, {nil, "y"}}) {
		t.Fatalf("Rows after Drop = %v", h.Rows())
	}
	if same := h.Drop("missing"); !reflect.DeepEqual(same.Columns(), h.Columns()) {
		t.Fatalf("dropping a missing column changed the frame")
	}

	var empty Frame
	first, err := empty.WithColumn("a", []any{1, 2, 3})
	if err != nil || first.Len() != 3 {
		t.Fatalf("WithColumn on empty frame: len=%d err=%v", first.Len(), err)
	}
}
