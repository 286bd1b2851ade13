package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// Recognizer patterns, in cascade order.
var (
	reYYYYMM    = regexp.MustCompile(`^20[1-2]\d[0-1]\d$`)
	reUSAmPm    = regexp.MustCompile(`^([0-3]?\d)/([0-1]?[1-9])/(\d{2}), [0-1]?\d:(00:?){2} [A-Z]{2}$`)
	reUSTime    = regexp.MustCompile(`^([0-3]?\d)/([0-1]?[1-9])/(\d{2}) [0-1]?\d:(00:?){2}`)
	reISOTime   = regexp.MustCompile(`^([1-2]\d{3})-([0-2]\d)-([0-3]\d) \d{2}:\d{2}:\d{2}`)
	reISO       = regexp.MustCompile(`^([1-2]\d{3})-([0-2]\d)-([0-3]\d)`)
	reDMYTime   = regexp.MustCompile(`^(\d{2})/([0-1]\d)/(\d{4}).`)
	reDMY       = regexp.MustCompile(`^(\d{2})/([0-1]\d)/(\d{4})$`)
	reShortDMY  = regexp.MustCompile(`^(\d)/([0-1]\d)/(\d{4})$`)
	reMonthYear = regexp.MustCompile(`^([0-1]\d)/(\d{4})$`)
	reMonDashYY = regexp.MustCompile(`^([A-Za-z]{3})-([1-2]\d)$`)
	reDDMonYYYY = regexp.MustCompile(`^\d{2}/([A-Za-z]{3})/(\d{4})$`)
	reRange23   = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	reRange22   = regexp.MustCompile(`^(\d{2})/(\d{2})(\d{4})$`)
	reDMYY      = regexp.MustCompile(`^(\d{2})/([0-1]\d)/(\d{2})`)
	reMYCompact = regexp.MustCompile(`([0-1]\d)[-_.\s]?([1-2]\d{3})`)
	reMonSlash  = regexp.MustCompile(`^([A-Za-z]{3})/([1-2]\d)$`)
)

// rangeSeparator splits "<date> A <date>" ranges.
const rangeSeparator = " A "

// recognizer tries one shape. matched reports whether the shape applied; when
// it did, ok reports whether the value is a valid date.
type recognizer struct {
	name  string
	parse func(p *Parser, s string) (d civil.Date, matched, ok bool)
}

var cascade = []recognizer{
	{"yyyymm", parseYYYYMM},
	{"us-ampm", parseUSAmPm},
	{"us-time", parseUSTime},
	{"iso-time", parseISOTime},
	{"iso", parseISO},
	{"dmy-time", parseDMYTime},
	{"dmy", parseDMY},
	{"d-my", parseShortDMY},
	{"mon-yy", parseMonDashYY},
	{"dd-mon-yyyy", parseDDMonYYYY},
	{"range", parseRange},
	{"dmyy", parseDMYY},
	{"my-compact", parseMYCompact},
	{"mon/yy", parseMonSlashYY},
}

// RuleNames lists the recognizers in the order they are tried.
func RuleNames() []string {
	out := make([]string, len(cascade))
	for i, r := range cascade {
		out[i] = r.name
	}
	return out
}

// Parser turns free-form date strings into dates through a fixed cascade of
// recognizers. The first recognizer whose shape matches decides the outcome;
// an invalid date in a matched shape is not retried by later rules.
//
// A Parser is immutable and safe for concurrent use.
type Parser struct {
	months MonthTable
	clock  Clock
}

// NewParser builds a Parser. A nil months table selects PortugueseMonths and
// a nil clock selects SystemClock.
func NewParser(months MonthTable, clock Clock) *Parser {
	if months == nil {
		months = PortugueseMonths()
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Parser{months: months, clock: clock}
}

// Parse runs the cascade on s and returns the date and the name of the rule
// that produced it.
//
// Errors:
//   - *ValueError wrapping ErrSingleValueUnparseable. Rule is set when a
//     shape matched but the date was invalid.
func (p *Parser) Parse(s string) (civil.Date, string, error) {
	s = strings.TrimSpace(s)
	for _, r := range cascade {
		d, matched, ok := r.parse(p, s)
		if !matched {
			continue
		}
		if !ok {
			return civil.Date{}, r.name, &ValueError{Value: s, Rule: r.name, Err: ErrSingleValueUnparseable}
		}
		return d, r.name, nil
	}
	return civil.Date{}, "", &ValueError{Value: s, Err: ErrSingleValueUnparseable}
}

// ParseValue parses one raw cell.
//
// Returns:
//   - nil for nil, blank and null-like strings, and numeric zero
//   - civil.Date for parsed values, time.Time and civil.Date inputs
//   - the original value unchanged, plus an error, when nothing matched
func (p *Parser) ParseValue(v any) (any, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case civil.Date:
		return x, nil
	case time.Time:
		return civil.DateOf(x), nil
	case string:
		s = x
	case []byte:
		s = string(x)
	case int:
		if x == 0 {
			return nil, nil
		}
		s = strconv.Itoa(x)
	case int64:
		if x == 0 {
			return nil, nil
		}
		s = strconv.FormatInt(x, 10)
	case float64:
		if x == 0 {
			return nil, nil
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}

	if IsNullToken(strings.TrimSpace(s)) {
		return nil, nil
	}
	d, _, err := p.Parse(s)
	if err != nil {
		return v, err
	}
	return d, nil
}

func submatch(re *regexp.Regexp, s string) []int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	out := make([]int, 0, len(m)-1)
	for _, g := range m[1:] {
		n, ok := atoiDigits(g)
		if !ok {
			n = -1
		}
		out = append(out, n)
	}
	return out
}

func firstOfMonth(y, m int) (civil.Date, bool) { return makeDate(y, m, 1) }

// parseYYYYMM looks only at the first six characters, so "20151231" is read
// as December 2015.
func parseYYYYMM(_ *Parser, s string) (civil.Date, bool, bool) {
	if len(s) < 6 || !reYYYYMM.MatchString(s[:6]) {
		return civil.Date{}, false, false
	}
	y, _ := atoiDigits(s[:4])
	d, ok := firstOfMonth(y, atoi2(s[4:6]))
	return d, true, ok
}

// US exports put the month first.
func parseUSAmPm(_ *Parser, s string) (civil.Date, bool, bool) {
	g := submatch(reUSAmPm, s)
	if g == nil {
		return civil.Date{}, false, false
	}
	d, ok := makeDate(expandYY(g[2]), g[0], g[1])
	return d, true, ok
}

func parseUSTime(_ *Parser, s string) (civil.Date, bool, bool) {
	g := submatch(reUSTime, s)
	if g == nil {
		return civil.Date{}, false, false
	}
	d, ok := makeDate(expandYY(g[2]), g[0], g[1])
	return d, true, ok
}

func parseISOTime(_ *Parser, s string) (civil.Date, bool, bool) {
	g := submatch(reISOTime, s)
	if g == nil {
		return civil.Date{}, false, false
	}
	d, ok := makeDate(g[0], g[1], g[2])
	return d, true, ok
}

func parseISO(_ *Parser, s string) (civil.Date, bool, bool) {
	g := submatch(reISO, s)
	if g == nil {
		return civil.Date{}, false, false
	}
	d, ok := makeDate(g[0], g[1], g[2])
	return d, true, ok
}

// parseDMYTime takes "DD/MM/YYYY" followed by anything (a time, a suffix);
// the bare date falls through to parseDMY.
func parseDMYTime(_ *Parser, s string) (civil.Date, bool, bool) {
	g := submatch(reDMYTime, s)
	if g == nil {
		return civil.Date{}, false, false
	}
	d, ok := makeDate(g[2], g[1], g[0])
	return d, true, ok
}

func parseDMY(_ *Parser, s string) (civil.Date, bool, bool) {
	g := submatch(reDMY, s)
	if g == nil {
		return civil.Date{}, false, false
	}
	d, ok := makeDate(g[2], g[1], g[0])
	return d, true, ok
}

// parseShortDMY covers "1/02/2020" and the month-only "02/2020".
func parseShortDMY(_ *Parser, s string) (civil.Date, bool, bool) {
	if g := submatch(reShortDMY, s); g != nil {
		d, ok := makeDate(g[2], g[1], g[0])
		return d, true, ok
	}
	if g := submatch(reMonthYear, s); g != nil {
		d, ok := firstOfMonth(g[1], g[0])
		return d, true, ok
	}
	return civil.Date{}, false, false
}

func parseMonDashYY(p *Parser, s string) (civil.Date, bool, bool) {
	m := reMonDashYY.FindStringSubmatch(s)
	if m == nil {
		return civil.Date{}, false, false
	}
	return p.monthYear(m[1], expandYY(atoi2(m[2])))
}

// parseDDMonYYYY keeps only year and month; the day is not trusted.
func parseDDMonYYYY(p *Parser, s string) (civil.Date, bool, bool) {
	m := reDDMonYYYY.FindStringSubmatch(s)
	if m == nil {
		return civil.Date{}, false, false
	}
	y, _ := atoiDigits(m[2])
	return p.monthYear(m[1], y)
}

// parseRange reads the first bound of "<date> A <date>". The total length
// picks the bound's layout: 23 for DD/MM/YYYY, 22 for DD/MMYYYY.
func parseRange(_ *Parser, s string) (civil.Date, bool, bool) {
	if !strings.Contains(s, rangeSeparator) {
		return civil.Date{}, false, false
	}
	first := strings.TrimSpace(strings.SplitN(s, rangeSeparator, 2)[0])
	var g []int
	switch len(s) {
	case 23:
		g = submatch(reRange23, first)
	case 22:
		g = submatch(reRange22, first)
	}
	if g == nil {
		return civil.Date{}, true, false
	}
	d, ok := makeDate(g[2], g[1], g[0])
	return d, true, ok
}

// parseDMYY resolves the century against the clock: years up to next year's
// two digits are 20xx, anything above is 19xx.
// parseDMYY reads the first eight characters; trailing text is ignored.
func parseDMYY(p *Parser, s string) (civil.Date, bool, bool) {
	g := submatch(reDMYY, s)
	if g == nil {
		return civil.Date{}, false, false
	}
	pivot := p.clock.Today().Year%100 + 1
	y := 2000 + g[2]
	if g[2] > pivot {
		y = 1900 + g[2]
	}
	d, ok := makeDate(y, g[1], g[0])
	return d, true, ok
}

func parseMYCompact(_ *Parser, s string) (civil.Date, bool, bool) {
	g := submatch(reMYCompact, s)
	if g == nil {
		return civil.Date{}, false, false
	}
	d, ok := firstOfMonth(g[1], g[0])
	return d, true, ok
}

func parseMonSlashYY(p *Parser, s string) (civil.Date, bool, bool) {
	m := reMonSlash.FindStringSubmatch(s)
	if m == nil {
		return civil.Date{}, false, false
	}
	return p.monthYear(m[1], expandYY(atoi2(m[2])))
}

func (p *Parser) monthYear(abbrev string, year int) (civil.Date, bool, bool) {
	month, ok := p.months.Lookup(abbrev)
	if !ok {
		return civil.Date{}, true, false
	}
	d, ok := firstOfMonth(year, int(month))
	return d, true, ok
}
