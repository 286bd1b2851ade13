package dates

import (
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// midnightSuffix is appended by spreadsheet exports to date-only cells.
const midnightSuffix = " 00:00:00"

var separatorStripper = strings.NewReplacer("/", "", "-", "", ".", "", " ", "")

// CleanToken turns a raw compact-code value into its cleaned form: trimmed,
// the midnight suffix removed, then every '/', '-', '.' and space removed.
//
// Edge cases:
//   - The suffix is removed before separators, so "01/02/03 00:00:00" becomes
//     "010203" and not "01020300 0000".
func CleanToken(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, midnightSuffix)
	return separatorStripper.Replace(s)
}

// IsNullToken reports whether a cleaned token stands for a missing date.
func IsNullToken(cleaned string) bool {
	switch strings.ToLower(cleaned) {
	case "", "000000", "00000000", "nan", "nat", "none", "null":
		return true
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// atoi2 parses exactly two ASCII digits.
func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}

func atoiDigits(s string) (int, bool) {
	if !isDigits(s) {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

// makeDate returns the date when y/m/d name a real calendar day.
func makeDate(y, m, d int) (civil.Date, bool) {
	if y < 1 || y > 9999 || m < 1 || m > 12 || d < 1 {
		return civil.Date{}, false
	}
	if d > daysIn(time.Month(m), y) {
		return civil.Date{}, false
	}
	return civil.Date{Year: y, Month: time.Month(m), Day: d}, true
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// expandYY applies the strptime %y pivot: 69-99 are 19xx, 00-68 are 20xx.
func expandYY(yy int) int {
	if yy >= 69 {
		return 1900 + yy
	}
	return 2000 + yy
}
