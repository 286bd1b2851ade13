package dates

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/golang-sql/civil"
)

//
// InferFormat
//

// TestInferFormat_Resolves verifies elimination over group maxima for both
// code widths, including the 8-digit split-year merge.
func TestInferFormat_Resolves(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tokens []string
		want   string
	}{
		{"ddmmyy by elimination", []string{"010203", "311205", "150678"}, "%d%m%y"},
		{"yymmdd", []string{"781231", "050115", "990701"}, "%y%m%d"},
		{"mmddyy", []string{"123185", "011577", "063099"}, "%m%d%y"},
		{"single row still resolves", []string{"150678"}, "%d%m%y"},
		{"ddmmyyyy split year", []string{"01021990", "15121985", "31072001"}, "%d%m%Y"},
		{"yyyymmdd split year", []string{"19900102", "20011231"}, "%Y%m%d"},
		{"mmddyyyy split year", []string{"12311990", "01152001", "06301985"}, "%m%d%Y"},
		{"year rollover 99 is a year", []string{"31121999", "01012000", "10052000"}, "%d%m%Y"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := InferFormat(tt.tokens)
			if err != nil {
				t.Fatalf("InferFormat(%v) error: %v", tt.tokens, err)
			}
			if got := f.Layout(); got != tt.want {
				t.Fatalf("InferFormat(%v) = %q, want %q", tt.tokens, got, tt.want)
			}
		})
	}
}

// TestInferFormat_Ambiguous verifies that ties and unsolvable patterns are
// reported, never guessed.
func TestInferFormat_Ambiguous(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tokens []string
	}{
		{"all maxima equal", []string{"121212"}},
		{"two maxima equal", []string{"101099"}},
		{"two day-only groups", []string{"312099"}},
		// 2000-2009 years never push a group past 31, so there is no year
		// trigger and four day/month groups cannot form a bijection.
		{"split year without trigger", []string{"20010102", "20051231"}},
		// The year trigger sits on the first group and has no century group
		// before it.
		{"trigger on first group", []string{"99123101", "85010102"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := InferFormat(tt.tokens)
			if !errors.Is(err, ErrStructuralAmbiguity) {
				t.Fatalf("InferFormat(%v) error = %v, want ErrStructuralAmbiguity", tt.tokens, err)
			}
		})
	}
}

// TestInferFormat_UnsupportedInput verifies width and content checks.
func TestInferFormat_UnsupportedInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tokens []string
	}{
		{"empty", nil},
		{"length 7", []string{"0102030"}},
		{"mixed lengths", []string{"010203", "01022003"}},
		{"non digits", []string{"01ab03"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := InferFormat(tt.tokens)
			if !errors.Is(err, ErrUnsupportedInput) {
				t.Fatalf("InferFormat(%v) error = %v, want ErrUnsupportedInput", tt.tokens, err)
			}
		})
	}
}

// TestInspect_Trace verifies the maxima and the final tag sets.
func TestInspect_Trace(t *testing.T) {
	t.Parallel()

	inf, err := Inspect([]string{"010203", "311205", "150678"})
	if err != nil {
		t.Fatalf("Inspect error: %v", err)
	}
	if want := []int{31, 12, 78}; !reflect.DeepEqual(inf.Maxima, want) {
		t.Fatalf("Maxima = %v, want %v", inf.Maxima, want)
	}
	if want := []TagSet{TagDay, TagMonth, TagYear}; !reflect.DeepEqual(inf.Tags, want) {
		t.Fatalf("Tags = %v, want %v", inf.Tags, want)
	}

	inf, err = Inspect([]string{"01021990", "15121985", "31072001"})
	if err != nil {
		t.Fatalf("Inspect error: %v", err)
	}
	if want := []TagSet{TagDay, TagMonth, TagCentury, TagYear}; !reflect.DeepEqual(inf.Tags, want) {
		t.Fatalf("split Tags = %v, want %v", inf.Tags, want)
	}
}

// TestInferFormat_AppliesToTokens checks the disambiguation example end to end.
func TestInferFormat_AppliesToTokens(t *testing.T) {
	t.Parallel()

	f, err := InferFormat([]string{"010203", "311205", "150678"})
	if err != nil {
		t.Fatalf("InferFormat error: %v", err)
	}
	got, err := f.Parse("010203")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	want := civil.Date{Year: 2003, Month: time.February, Day: 1}
	if got != want {
		t.Fatalf("Parse(010203) = %v, want %v", got, want)
	}
}

// TestInferFormat_RoundTrip verifies Render(Parse(t)) == t for inferred
// formats.
func TestInferFormat_RoundTrip(t *testing.T) {
	t.Parallel()

	columns := [][]string{
		{"010203", "311205", "150678"},
		{"781231", "050115", "990701"},
		{"01021990", "15121985", "31072001"},
		{"19900102", "20011231", "19851015"},
	}
	for _, tokens := range columns {
		f, err := InferFormat(tokens)
		if err != nil {
			t.Fatalf("InferFormat(%v) error: %v", tokens, err)
		}
		for _, tok := range tokens {
			d, err := f.Parse(tok)
			if err != nil {
				t.Fatalf("%s.Parse(%q) error: %v", f, tok, err)
			}
			if got := f.Render(d); got != tok {
				t.Fatalf("%s round trip %q -> %v -> %q", f, tok, d, got)
			}
		}
	}
}

//
// ProbeFormat
//

// TestProbeFormat_AllOrNothing verifies a single bad value rejects a
// candidate for the whole column.
func TestProbeFormat_AllOrNothing(t *testing.T) {
	t.Parallel()

	f, err := ProbeFormat([]string{"20230115", "20230220"}, 8)
	if err != nil || f.Layout() != "%Y%m%d" {
		t.Fatalf("ProbeFormat = %v, %v; want %%Y%%m%%d", f, err)
	}

	// "20231332" rejects %Y%m%d for every row; %d%m%Y then fails on the
	// month 23 of "20230115".
	_, err = ProbeFormat([]string{"20230115", "20230220", "20231332"}, 8)
	if !errors.Is(err, ErrWholeColumnUnparseable) {
		t.Fatalf("ProbeFormat with bad row error = %v, want ErrWholeColumnUnparseable", err)
	}

	f, err = ProbeFormat([]string{"01022003", "31122003"}, 8)
	if err != nil || f.Layout() != "%d%m%Y" {
		t.Fatalf("ProbeFormat second candidate = %v, %v; want %%d%%m%%Y", f, err)
	}

	f, err = ProbeFormat([]string{"121212"}, 6)
	if err != nil || f.Layout() != "%y%m%d" {
		t.Fatalf("ProbeFormat width 6 = %v, %v; want %%y%%m%%d", f, err)
	}

	if _, err := ProbeFormat([]string{"1234567"}, 7); !errors.Is(err, ErrUnsupportedInput) {
		t.Fatalf("ProbeFormat width 7 error = %v, want ErrUnsupportedInput", err)
	}
}

//
// Format
//

// TestParseLayout verifies layout parsing and the bijection check.
func TestParseLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		layout string
		width  int
		ok     bool
	}{
		{"%d%m%y", 6, true},
		{"%Y%m%d", 8, true},
		{"%m%d%Y", 8, true},
		{"%d%d%y", 0, false},
		{"%d%m", 0, false},
		{"%d%m%x", 0, false},
		{"%d%m%", 0, false},
	}
	for _, tt := range tests {
		f, err := ParseLayout(tt.layout)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseLayout(%q) error = %v, want ok=%v", tt.layout, err, tt.ok)
		}
		if tt.ok && (f.Width() != tt.width || f.Layout() != tt.layout) {
			t.Fatalf("ParseLayout(%q) = %s width %d, want width %d", tt.layout, f, f.Width(), tt.width)
		}
	}
}

// TestFormatParse_Rejects verifies calendar validation.
func TestFormatParse_Rejects(t *testing.T) {
	t.Parallel()

	for _, tok := range []string{"310203", "290201", "000199", "01130", "0113ab"} {
		if _, err := FormatDMY6.Parse(tok); !errors.Is(err, ErrSingleValueUnparseable) {
			t.Fatalf("FormatDMY6.Parse(%q) error = %v, want ErrSingleValueUnparseable", tok, err)
		}
	}
	if _, err := FormatDMY6.Parse("290200"); err != nil {
		t.Fatalf("FormatDMY6.Parse(290200) leap day error: %v", err)
	}
}
