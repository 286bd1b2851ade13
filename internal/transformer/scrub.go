package transformer

import "strings"

// scrubber removes spreadsheet residue from exported cells: Excel formula
// guards (="0102"), stray quotes, non-breaking spaces and the currency
// marker.
var scrubber = strings.NewReplacer(
	`"`, "",
	"=", "",
	"\u00a0", "",
	"R$", "",
	"'", "",
)

// Scrub cleans one cell and trims surrounding space.
func Scrub(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(scrubber.Replace(s))
}

// ScrubRow applies Scrub to every string cell of r in place. Cells that
// become empty turn into nil.
func ScrubRow(r *Row) {
	for i, v := range r.V {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = Scrub(s); s == "" {
			r.V[i] = nil
		} else {
			r.V[i] = s
		}
	}
}

// HasEdgeSpace reports whether s starts or ends with a space or tab. It lets
// hot paths skip strings.TrimSpace for the common clean cell.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return first == ' ' || first == '\t' || last == ' ' || last == '\t' || last == '\r'
}
