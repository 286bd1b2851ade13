package dates

import (
	"errors"
	"fmt"
)

// Error taxonomy. None of these abort a batch: column-level errors degrade the
// column, value-level errors keep the original value.
var (
	// ErrStructuralAmbiguity means inference found a tie or a tag pattern that
	// cannot be solved without a seed. The column escalates to ProbeFormat.
	ErrStructuralAmbiguity = errors.New("structural ambiguity")

	// ErrWholeColumnUnparseable means every fallback candidate was rejected.
	ErrWholeColumnUnparseable = errors.New("whole column unparseable")

	// ErrSingleValueUnparseable means one value matched no recognizer, or
	// matched a recognizer shape but is not a valid calendar date.
	ErrSingleValueUnparseable = errors.New("single value unparseable")

	// ErrUnsupportedInput means a compact column has tokens that are not
	// 6 or 8 digits long, or whose lengths differ.
	ErrUnsupportedInput = errors.New("unsupported input")
)

// ValueError describes one value that could not be turned into a date.
type ValueError struct {
	Column string
	Row    int
	Value  string
	// Rule is the recognizer whose shape matched, empty when none did.
	Rule string
	Err  error
}

func (e *ValueError) Error() string {
	loc := ""
	if e.Column != "" {
		loc = fmt.Sprintf("column %q row %d: ", e.Column, e.Row)
	}
	if e.Rule != "" {
		return fmt.Sprintf("%svalue %q (rule %s): %v", loc, e.Value, e.Rule, e.Err)
	}
	return fmt.Sprintf("%svalue %q: %v", loc, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// ColumnError attaches a column name to a column-level failure.
type ColumnError struct {
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q: %v", e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// Kind maps an engine error to a stable label for logs and metrics.
// It returns "" for nil and "other" for errors outside the taxonomy.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStructuralAmbiguity):
		return "structural_ambiguity"
	case errors.Is(err, ErrWholeColumnUnparseable):
		return "whole_column_unparseable"
	case errors.Is(err, ErrSingleValueUnparseable):
		return "single_value_unparseable"
	case errors.Is(err, ErrUnsupportedInput):
		return "unsupported_input"
	default:
		return "other"
	}
}
