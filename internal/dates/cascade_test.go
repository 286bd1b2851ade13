package dates

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-sql/civil"
)

func date(y int, m time.Month, d int) civil.Date { return civil.Date{Year: y, Month: m, Day: d} }

// testParser pins "now" to 2024-06-01 so the DD/MM/YY window is stable.
func testParser() *Parser {
	return NewParser(nil, FixedClock(date(2024, time.June, 1)))
}

//
// Parser.Parse
//

// TestParser_Cascade verifies each recognizer and the rule that produced the
// date.
func TestParser_Cascade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want civil.Date
		rule string
	}{
		{"201512", date(2015, time.December, 1), "yyyymm"},
		{"20151231", date(2015, time.December, 1), "yyyymm"},
		{"10/1/20, 12:00:00 AM", date(2020, time.October, 1), "us-ampm"},
		{"10/1/20 0:00:00", date(2020, time.October, 1), "us-time"},
		{"2021-03-04 10:11:12", date(2021, time.March, 4), "iso-time"},
		{"2021-03-04", date(2021, time.March, 4), "iso"},
		{"2021-03-04T10:11:12Z", date(2021, time.March, 4), "iso"},
		{"05/03/2021 00:00:00", date(2021, time.March, 5), "dmy-time"},
		{"01/02/2020abc", date(2020, time.February, 1), "dmy-time"},
		{"01/02/2020", date(2020, time.February, 1), "dmy"},
		{"5/03/2021", date(2021, time.March, 5), "d-my"},
		{"07/2022", date(2022, time.July, 1), "d-my"},
		{"Fev-21", date(2021, time.February, 1), "mon-yy"},
		{"dez-19", date(2019, time.December, 1), "mon-yy"},
		{"15/ago/2020", date(2020, time.August, 1), "dd-mon-yyyy"},
		// The 23-character range starts like "DD/MM/YYYY <time>" and is taken
		// by the earlier rule; the first bound wins either way.
		{"26/07/2021 A 25/08/2021", date(2021, time.July, 26), "dmy-time"},
		{"26/072021 A 25/08/2021", date(2021, time.July, 26), "range"},
		{"01/02/25", date(2025, time.February, 1), "dmyy"},
		{"01/02/26", date(1926, time.February, 1), "dmyy"},
		{"01/02/85", date(1985, time.February, 1), "dmyy"},
		{"20/10/20 10:00", date(2020, time.October, 20), "dmyy"},
		{"COMPETENCIA 03.2022", date(2022, time.March, 1), "my-compact"},
		{"03_2022", date(2022, time.March, 1), "my-compact"},
		{"032022", date(2022, time.March, 1), "my-compact"},
		{"Out/22", date(2022, time.October, 1), "mon/yy"},
		{"  01/02/2020  ", date(2020, time.February, 1), "dmy"},
	}

	p := testParser()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, rule, err := p.Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if got != tt.want || rule != tt.rule {
				t.Fatalf("Parse(%q) = %v via %s, want %v via %s", tt.in, got, rule, tt.want, tt.rule)
			}
		})
	}
}

// TestParser_Unparseable verifies matched-but-invalid shapes stop the
// cascade and unknown shapes report no rule.
func TestParser_Unparseable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		rule string
	}{
		{"32/13/2020", "dmy"},
		{"30/02/2021", "dmy"},
		{"xyz-21", "mon-yy"},
		{"26/07/21 A 25/08/21", "range"},
		{"201913", "yyyymm"},
		{"hello", ""},
		{"", ""},
	}

	p := testParser()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			_, rule, err := p.Parse(tt.in)
			if !errors.Is(err, ErrSingleValueUnparseable) {
				t.Fatalf("Parse(%q) error = %v, want ErrSingleValueUnparseable", tt.in, err)
			}
			if rule != tt.rule {
				t.Fatalf("Parse(%q) rule = %q, want %q", tt.in, rule, tt.rule)
			}
			var ve *ValueError
			if !errors.As(err, &ve) || ve.Rule != tt.rule {
				t.Fatalf("Parse(%q) error %v is not a *ValueError with rule %q", tt.in, err, tt.rule)
			}
		})
	}
}

// TestParser_ParseValue verifies null handling, passthrough and graceful
// failure.
func TestParser_ParseValue(t *testing.T) {
	t.Parallel()

	p := testParser()
	ts := time.Date(2022, time.May, 6, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{"nil", nil, nil, false},
		{"blank", "   ", nil, false},
		{"nan artifact", "NaN", nil, false},
		{"zero int", 0, nil, false},
		{"time value", ts, date(2022, time.May, 6), false},
		{"civil passthrough", date(2001, time.January, 2), date(2001, time.January, 2), false},
		{"int yyyymm", 202012, date(2020, time.December, 1), false},
		{"float yyyymm", float64(202012), date(2020, time.December, 1), false},
		{"string", "01/02/2020", date(2020, time.February, 1), false},
		{"bad string kept", "32/13/2020", "32/13/2020", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.ParseValue(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseValue(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseValue(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

// TestParser_CustomMonthTable verifies the month table is injected.
func TestParser_CustomMonthTable(t *testing.T) {
	t.Parallel()

	p := NewParser(NewMonthTable([]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}), FixedClock(date(2024, 1, 1)))
	got, _, err := p.Parse("Feb-21")
	if err != nil || got != date(2021, time.February, 1) {
		t.Fatalf("Parse(Feb-21) = %v, %v", got, err)
	}
	if _, _, err := p.Parse("Fev-21"); !errors.Is(err, ErrSingleValueUnparseable) {
		t.Fatalf("Parse(Fev-21) error = %v, want ErrSingleValueUnparseable", err)
	}
}

// TestParser_TwoDigitYearWindowFollowsClock verifies the window moves with
// the injected clock.
func TestParser_TwoDigitYearWindowFollowsClock(t *testing.T) {
	t.Parallel()

	p := NewParser(nil, FixedClock(date(2030, time.January, 1)))
	got, _, err := p.Parse("01/02/31")
	if err != nil || got != date(2031, time.February, 1) {
		t.Fatalf("Parse(01/02/31) with now=2030 = %v, %v; want 2031-02-01", got, err)
	}
}

//
// CleanToken / IsNullToken
//

// TestCleanToken verifies separator and suffix stripping.
func TestCleanToken(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"01/02/03", "010203"},
		{"01-02-2003", "01022003"},
		{"01.02.03", "010203"},
		{" 01 02 03 ", "010203"},
		{"2003-02-01 00:00:00", "20030201"},
		{"010203", "010203"},
	}
	for _, tt := range tests {
		if got := CleanToken(tt.in); got != tt.want {
			t.Fatalf("CleanToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	for _, s := range []string{"", "000000", "00000000", "nan", "NaT", "None", "null"} {
		if !IsNullToken(s) {
			t.Fatalf("IsNullToken(%q) = false, want true", s)
		}
	}
	if IsNullToken("0000000") {
		t.Fatalf("IsNullToken(0000000) = true, want false")
	}
}

//
// CenturyCorrector
//

// TestCenturyCorrector verifies future dates move back one century.
func TestCenturyCorrector(t *testing.T) {
	t.Parallel()

	c := CenturyCorrector{Clock: FixedClock(date(2024, time.June, 1))}
	tests := []struct {
		in, want civil.Date
		changed  bool
	}{
		{date(2025, time.January, 1), date(1925, time.January, 1), true},
		{date(2024, time.June, 1), date(2024, time.June, 1), false},
		{date(2024, time.June, 2), date(1924, time.June, 2), true},
		{date(1985, time.March, 3), date(1985, time.March, 3), false},
	}
	for _, tt := range tests {
		got, changed := c.Correct(tt.in)
		if got != tt.want || changed != tt.changed {
			t.Fatalf("Correct(%v) = %v,%v; want %v,%v", tt.in, got, changed, tt.want, tt.changed)
		}
	}

	c = CenturyCorrector{Clock: FixedClock(date(1999, time.January, 1))}
	if got, _ := c.Correct(date(2000, time.February, 29)); got != date(1900, time.February, 28) {
		t.Fatalf("Correct(2000-02-29) = %v, want 1900-02-28", got)
	}
}

//
// CompetenciaFromPath
//

// TestCompetenciaFromPath verifies the reference month is read from paths.
func TestCompetenciaFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want civil.Date
		ok   bool
	}{
		{"/data/operadora/2023/07/faturamento.csv", date(2023, time.July, 1), true},
		{`C:\dados\2021\12\base.xlsx`, date(2021, time.December, 1), true},
		{"/data/2023/19/x.csv", civil.Date{}, false},
		{"/data/sem-data.csv", civil.Date{}, false},
	}
	for _, tt := range tests {
		got, ok := CompetenciaFromPath(tt.path)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("CompetenciaFromPath(%q) = %v,%v; want %v,%v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}
