package dates

import (
	"fmt"
	"math/bits"
	"strings"
)

// TagSet is the set of calendar fields a digit group may still encode.
type TagSet uint8

const (
	TagDay TagSet = 1 << iota
	TagMonth
	// TagYear marks a two-digit year. In 8-digit codes it is the low half
	// of a split four-digit year.
	TagYear
	// TagCentury marks the high half of a split four-digit year (8-digit
	// codes only). It is given to the group right before a TagYear group.
	TagCentury
)

// Len is the number of tags in the set.
func (s TagSet) Len() int { return bits.OnesCount8(uint8(s)) }

func (s TagSet) String() string {
	if s == 0 {
		return "{}"
	}
	names := make([]string, 0, 4)
	if s&TagDay != 0 {
		names = append(names, "day")
	}
	if s&TagMonth != 0 {
		names = append(names, "month")
	}
	if s&TagYear != 0 {
		names = append(names, "year")
	}
	if s&TagCentury != 0 {
		names = append(names, "century")
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Inference is the trace of one column inference, useful for diagnostics.
type Inference struct {
	// Width is the token length (6 or 8).
	Width int
	// Maxima holds the column maximum of each two-digit group.
	Maxima []int
	// Tags holds the candidate sets after elimination (or at the point the
	// inference gave up).
	Tags []TagSet
	// Format is set when the inference succeeded.
	Format Format
}

// InferFormat deduces the field order of a column of compact codes.
//
// tokens must be cleaned, non-null and all of the same length (6 or 8).
//
// Errors:
//   - ErrUnsupportedInput when tokens is empty, a token is not all digits,
//     or lengths are not a uniform 6 or 8.
//   - ErrStructuralAmbiguity when maxima tie, tags cannot be narrowed to a
//     bijection, or the 8-digit split year cannot be paired.
func InferFormat(tokens []string) (Format, error) {
	inf, err := Inspect(tokens)
	if err != nil {
		return Format{}, err
	}
	return inf.Format, nil
}

// Inspect runs the inference and returns its trace. On error the trace is
// filled as far as the inference got.
func Inspect(tokens []string) (Inference, error) {
	width, err := uniformWidth(tokens)
	if err != nil {
		return Inference{}, err
	}
	inf := Inference{Width: width, Maxima: columnMaxima(tokens, width/2)}

	for i := 0; i < len(inf.Maxima); i++ {
		for j := i + 1; j < len(inf.Maxima); j++ {
			if inf.Maxima[i] == inf.Maxima[j] {
				return inf, fmt.Errorf("%w: groups %d and %d share maximum %d", ErrStructuralAmbiguity, i, j, inf.Maxima[i])
			}
		}
	}

	tags, err := candidateTags(inf.Maxima, width == 8)
	inf.Tags = tags
	if err != nil {
		return inf, err
	}
	if pairwiseTwoTagDeadlock(tags) {
		return inf, fmt.Errorf("%w: every group holds two distinct candidates %v", ErrStructuralAmbiguity, tags)
	}

	eliminate(tags)

	f, err := resolveTags(tags)
	if err != nil {
		return inf, err
	}
	inf.Format = f
	return inf, nil
}

func uniformWidth(tokens []string) (int, error) {
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: no tokens", ErrUnsupportedInput)
	}
	width := len(tokens[0])
	if width != 6 && width != 8 {
		return 0, fmt.Errorf("%w: token %q has length %d, want 6 or 8", ErrUnsupportedInput, tokens[0], width)
	}
	for _, t := range tokens {
		if len(t) != width {
			return 0, fmt.Errorf("%w: mixed token lengths %d and %d", ErrUnsupportedInput, width, len(t))
		}
		if !isDigits(t) {
			return 0, fmt.Errorf("%w: token %q is not numeric", ErrUnsupportedInput, t)
		}
	}
	return width, nil
}

func columnMaxima(tokens []string, groups int) []int {
	maxima := make([]int, groups)
	for _, t := range tokens {
		for g := 0; g < groups; g++ {
			if v := atoi2(t[2*g : 2*g+2]); v > maxima[g] {
				maxima[g] = v
			}
		}
	}
	return maxima
}

// candidateTags derives the initial sets. A maximum of 0 or above 31 (which
// covers the 99 of a year rollover) can only be a year.
func candidateTags(maxima []int, split bool) ([]TagSet, error) {
	tags := make([]TagSet, len(maxima))
	for i, m := range maxima {
		if m == 0 || m > 31 {
			tags[i] |= TagYear
			if split {
				if i == 0 {
					return tags, fmt.Errorf("%w: year group 0 has no preceding century group", ErrStructuralAmbiguity)
				}
				tags[i-1] |= TagCentury
			}
			continue
		}
		tags[i] |= TagDay
		if m <= 12 {
			tags[i] |= TagMonth
		}
	}
	return tags, nil
}

func pairwiseTwoTagDeadlock(tags []TagSet) bool {
	for i, s := range tags {
		if s.Len() != 2 {
			return false
		}
		for j := i + 1; j < len(tags); j++ {
			if tags[j] == s {
				return false
			}
		}
	}
	return true
}

// eliminate removes every singleton's tag from the other sets until nothing
// changes. Sets that are already singletons are left alone, so a clash
// between two singletons survives and is rejected by resolveTags.
func eliminate(tags []TagSet) {
	for changed := true; changed; {
		changed = false
		for i, s := range tags {
			if s.Len() != 1 {
				continue
			}
			for j := range tags {
				if j == i || tags[j].Len() < 2 || tags[j]&s == 0 {
					continue
				}
				tags[j] &^= s
				changed = true
			}
		}
	}
}

func resolveTags(tags []TagSet) (Format, error) {
	var seen TagSet
	for _, s := range tags {
		if s.Len() != 1 || seen&s != 0 {
			return Format{}, fmt.Errorf("%w: unresolved candidates %v", ErrStructuralAmbiguity, tags)
		}
		seen |= s
	}

	fields := make([]Field, 0, 3)
	for i := 0; i < len(tags); i++ {
		switch tags[i] {
		case TagDay:
			fields = append(fields, FieldDay)
		case TagMonth:
			fields = append(fields, FieldMonth)
		case TagYear:
			if seen&TagCentury != 0 {
				return Format{}, fmt.Errorf("%w: year group %d is not preceded by its century group", ErrStructuralAmbiguity, i)
			}
			fields = append(fields, FieldYear2)
		case TagCentury:
			if i+1 >= len(tags) || tags[i+1] != TagYear {
				return Format{}, fmt.Errorf("%w: century group %d is not followed by its year group", ErrStructuralAmbiguity, i)
			}
			fields = append(fields, FieldYear4)
			i++
		}
	}

	f, err := NewFormat(fields...)
	if err != nil {
		return Format{}, fmt.Errorf("%w: %v", ErrStructuralAmbiguity, err)
	}
	return f, nil
}
