package dates

import (
	"strings"
	"time"
)

// MonthTable maps three-letter month abbreviations to month numbers.
// Lookups are case-insensitive; keys are stored lowercase.
type MonthTable map[string]time.Month

// PortugueseMonths is the abbreviation table used by the upstream exports.
func PortugueseMonths() MonthTable {
	return NewMonthTable([]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"})
}

// NewMonthTable builds a table from twelve abbreviations in calendar order.
// Entries past the twelfth are ignored; blanks are skipped.
func NewMonthTable(abbrevs []string) MonthTable {
	t := make(MonthTable, 12)
	for i, a := range abbrevs {
		if i >= 12 {
			break
		}
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		t[a] = time.Month(i + 1)
	}
	return t
}

// Lookup returns the month for abbrev.
func (t MonthTable) Lookup(abbrev string) (time.Month, bool) {
	m, ok := t[strings.ToLower(abbrev)]
	return m, ok
}
