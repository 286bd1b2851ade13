package dates

import (
	"time"

	"github.com/golang-sql/civil"
)

// Clock supplies "now" to the century corrector and the two-digit-year
// window of the cascade.
type Clock interface {
	Today() civil.Date
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() civil.Date

// Today implements Clock.
func (f ClockFunc) Today() civil.Date { return f() }

// SystemClock reads the local wall clock.
var SystemClock Clock = ClockFunc(func() civil.Date { return civil.DateOf(time.Now()) })

// FixedClock always reports d.
func FixedClock(d civil.Date) Clock {
	return ClockFunc(func() civil.Date { return d })
}
