package dates

import "github.com/golang-sql/civil"

// CenturyCorrector moves birth dates that land in the future back by one
// century. Two-digit years such as "25" expand to 2025, which for a birth
// date almost always means 1925.
type CenturyCorrector struct {
	Clock Clock
}

// Correct returns d, or d minus 100 years when d is after today. The second
// result reports whether a correction happened.
//
// Edge cases:
//   - Feb 29 of a year whose previous century is not a leap year becomes
//     Feb 28.
//   - A date equal to today is kept.
func (c CenturyCorrector) Correct(d civil.Date) (civil.Date, bool) {
	clock := c.Clock
	if clock == nil {
		clock = SystemClock
	}
	if !d.After(clock.Today()) {
		return d, false
	}
	y := d.Year - 100
	day := d.Day
	if n := daysIn(d.Month, y); day > n {
		day = n
	}
	return civil.Date{Year: y, Month: d.Month, Day: day}, true
}
