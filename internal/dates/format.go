package dates

import (
	"fmt"
	"strings"

	"github.com/golang-sql/civil"
)

// Field is one calendar component of a compact date code.
type Field uint8

const (
	FieldDay Field = iota + 1
	FieldMonth
	// FieldYear2 is a two-digit year, expanded with the strptime pivot.
	FieldYear2
	// FieldYear4 is a four-digit year.
	FieldYear4
)

func (f Field) width() int {
	if f == FieldYear4 {
		return 4
	}
	return 2
}

func (f Field) directive() string {
	switch f {
	case FieldDay:
		return "%d"
	case FieldMonth:
		return "%m"
	case FieldYear2:
		return "%y"
	case FieldYear4:
		return "%Y"
	}
	return "%?"
}

func (f Field) String() string {
	switch f {
	case FieldDay:
		return "day"
	case FieldMonth:
		return "month"
	case FieldYear2, FieldYear4:
		return "year"
	}
	return "unknown"
}

// Format is a resolved field order for fixed-width compact codes such as
// "311205" (%d%m%y) or "20230115" (%Y%m%d). The zero value is not usable.
type Format struct {
	fields []Field
	width  int
}

// Common compact formats.
var (
	FormatYMD8 = mustFormat(FieldYear4, FieldMonth, FieldDay)
	FormatDMY8 = mustFormat(FieldDay, FieldMonth, FieldYear4)
	FormatYMD6 = mustFormat(FieldYear2, FieldMonth, FieldDay)
	FormatDMY6 = mustFormat(FieldDay, FieldMonth, FieldYear2)
)

// NewFormat builds a format from positional fields. Each of day, month and
// year must appear exactly once.
func NewFormat(fields ...Field) (Format, error) {
	var seen [3]bool
	width := 0
	for _, f := range fields {
		idx := 0
		switch f {
		case FieldDay:
			idx = 0
		case FieldMonth:
			idx = 1
		case FieldYear2, FieldYear4:
			idx = 2
		default:
			return Format{}, fmt.Errorf("dates: unknown field %d", f)
		}
		if seen[idx] {
			return Format{}, fmt.Errorf("dates: field %s repeated", f)
		}
		seen[idx] = true
		width += f.width()
	}
	if !seen[0] || !seen[1] || !seen[2] {
		return Format{}, fmt.Errorf("dates: format needs day, month and year, got %d fields", len(fields))
	}
	return Format{fields: append([]Field(nil), fields...), width: width}, nil
}

func mustFormat(fields ...Field) Format {
	f, err := NewFormat(fields...)
	if err != nil {
		panic(err)
	}
	return f
}

// ParseLayout reads a strftime-like layout made of %d, %m, %y and %Y.
func ParseLayout(layout string) (Format, error) {
	if len(layout)%2 != 0 {
		return Format{}, fmt.Errorf("dates: bad layout %q", layout)
	}
	fields := make([]Field, 0, 3)
	for i := 0; i < len(layout); i += 2 {
		switch layout[i : i+2] {
		case "%d":
			fields = append(fields, FieldDay)
		case "%m":
			fields = append(fields, FieldMonth)
		case "%y":
			fields = append(fields, FieldYear2)
		case "%Y":
			fields = append(fields, FieldYear4)
		default:
			return Format{}, fmt.Errorf("dates: bad layout %q", layout)
		}
	}
	return NewFormat(fields...)
}

// IsZero reports whether f is the zero Format.
func (f Format) IsZero() bool { return len(f.fields) == 0 }

// Width is the token length the format consumes.
func (f Format) Width() int { return f.width }

// Fields returns a copy of the positional fields.
func (f Format) Fields() []Field { return append([]Field(nil), f.fields...) }

// Layout renders the format as a strftime-like layout such as "%d%m%y".
func (f Format) Layout() string {
	var b strings.Builder
	for _, fl := range f.fields {
		b.WriteString(fl.directive())
	}
	return b.String()
}

func (f Format) String() string { return f.Layout() }

// Parse reads a cleaned token. The token must be exactly Width digits and
// name a real calendar day.
func (f Format) Parse(token string) (civil.Date, error) {
	if f.IsZero() {
		return civil.Date{}, fmt.Errorf("dates: zero format")
	}
	if len(token) != f.width || !isDigits(token) {
		return civil.Date{}, fmt.Errorf("%w: %q does not fit %s", ErrSingleValueUnparseable, token, f.Layout())
	}
	var y, m, d int
	pos := 0
	for _, fl := range f.fields {
		w := fl.width()
		part := token[pos : pos+w]
		pos += w
		switch fl {
		case FieldDay:
			d = atoi2(part)
		case FieldMonth:
			m = atoi2(part)
		case FieldYear2:
			y = expandYY(atoi2(part))
		case FieldYear4:
			y, _ = atoiDigits(part)
		}
	}
	date, ok := makeDate(y, m, d)
	if !ok {
		return civil.Date{}, fmt.Errorf("%w: %q is not a valid %s date", ErrSingleValueUnparseable, token, f.Layout())
	}
	return date, nil
}

// Render formats d back into a compact token. Two-digit years keep only the
// last two digits, so Render(Parse(t)) == t for every token Parse accepts.
func (f Format) Render(d civil.Date) string {
	var b strings.Builder
	b.Grow(f.width)
	for _, fl := range f.fields {
		switch fl {
		case FieldDay:
			fmt.Fprintf(&b, "%02d", d.Day)
		case FieldMonth:
			fmt.Fprintf(&b, "%02d", int(d.Month))
		case FieldYear2:
			fmt.Fprintf(&b, "%02d", d.Year%100)
		case FieldYear4:
			fmt.Fprintf(&b, "%04d", d.Year)
		}
	}
	return b.String()
}
