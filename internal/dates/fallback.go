package dates

import "fmt"

// ProbeCandidates returns the fallback formats tried for a token width, in
// order.
func ProbeCandidates(width int) []Format {
	switch width {
	case 8:
		return []Format{FormatYMD8, FormatDMY8}
	case 6:
		return []Format{FormatYMD6, FormatDMY6}
	}
	return nil
}

// ProbeFormat tries each candidate against the whole column and returns the
// first one that parses every token. One bad token rejects a candidate for
// the entire column.
//
// Errors:
//   - ErrUnsupportedInput for widths other than 6 and 8.
//   - ErrWholeColumnUnparseable when no candidate fits every token.
func ProbeFormat(tokens []string, width int) (Format, error) {
	candidates := ProbeCandidates(width)
	if candidates == nil {
		return Format{}, fmt.Errorf("%w: no fallback formats for length %d", ErrUnsupportedInput, width)
	}

	var lastErr error
	for _, f := range candidates {
		if lastErr = parsesAll(f, tokens); lastErr == nil {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("%w: last candidate: %v", ErrWholeColumnUnparseable, lastErr)
}

func parsesAll(f Format, tokens []string) error {
	for _, t := range tokens {
		if _, err := f.Parse(t); err != nil {
			return err
		}
	}
	return nil
}
