// Package header turns raw spreadsheet headers into column keys.
//
// "Data de Nascimento", " DATA_DE_NASCIMENTO" and "data de nascimento" all
// become "data_de_nascimento", so the date engine's column rules match
// exports from different operators without per-file mapping.
package header

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const bom = "\uFEFF"

// Normalizer maps raw header cells to keys. The zero value folds accents
// and has no aliases.
type Normalizer struct {
	// Aliases maps a raw header (after trimming) or its folded key to the
	// final key. Raw matches win.
	Aliases map[string]string
}

// Fold lowercases s, strips diacritics, collapses runs of spaces,
// punctuation and separators into one "_" and trims "_" at both ends.
//
// Fold("Dt. Nascimento ") == "dt_nascimento"
// Fold("Inclusão Plano")  == "inclusao_plano"
func Fold(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), bom)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Key normalizes one header cell.
func (n Normalizer) Key(raw string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), bom)
	if k, ok := n.Aliases[trimmed]; ok {
		return k
	}
	k := Fold(trimmed)
	if alias, ok := n.Aliases[k]; ok {
		return alias
	}
	return k
}

// Keys normalizes a header row. Empty cells become "column_<n>" (1-based)
// and repeated keys get "_2", "_3", ... suffixes in order of appearance.
func (n Normalizer) Keys(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		k := n.Key(h)
		if k == "" {
			k = "column_" + strconv.Itoa(i+1)
		}
		if c := seen[k]; c > 0 {
			seen[k] = c + 1
			k = k + "_" + strconv.Itoa(c+1)
		} else {
			seen[k] = 1
		}
		out[i] = k
	}
	return out
}
