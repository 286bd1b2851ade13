package charset

import (
	"io"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// TestPick covers explicit names and detection.
func TestPick(t *testing.T) {
	t.Parallel()

	latin, err := charmap.Windows1252.NewEncoder().String("Inclusão")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tests := []struct {
		name      string
		enc       string
		sample    string
		truncated bool
		want      string
	}{
		{"utf8_explicit", "UTF-8", latin, false, "utf-8"},
		{"latin1", "latin_1", "", false, "latin1"},
		{"cp1252", "cp1252", "", false, "cp1252"},
		{"auto_valid", "auto", "Inclusão", false, "utf-8"},
		{"auto_invalid", "", latin, false, "cp1252"},
		{"auto_cut_rune", "auto", "Inclus\xc3", true, "utf-8"},
		{"auto_cut_rune_not_truncated", "auto", "Inclus\xc3", false, "cp1252"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc, err := Pick(tt.enc, []byte(tt.sample), tt.truncated)
			if err != nil {
				t.Fatalf("Pick: %v", err)
			}
			var got string
			switch enc {
			case nil:
				got = "utf-8"
			case charmap.ISO8859_1:
				got = "latin1"
			case charmap.Windows1252:
				got = "cp1252"
			}
			if got != tt.want {
				t.Fatalf("Pick(%q) = %s, want %s", tt.enc, got, tt.want)
			}
		})
	}

	if _, err := Pick("ebcdic", nil, false); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

// TestNewReader decodes Windows-1252 to UTF-8.
func TestNewReader(t *testing.T) {
	t.Parallel()

	latin, _ := charmap.Windows1252.NewEncoder().String("Competência")
	b, err := io.ReadAll(NewReader(strings.NewReader(latin), charmap.Windows1252))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(b) != "Competência" {
		t.Fatalf("decoded = %q", b)
	}
}
