// Package dates normalizes the date columns of benefits-administrator exports
// into civil.Date values.
//
// The package is responsible for:
//   - Parsing free-form date strings through a fixed, ordered cascade of
//     recognizers (Parser)
//   - Inferring the field order of 6- and 8-digit compact codes for a whole
//     column by elimination over per-group maxima (InferFormat)
//   - Probing fixed fallback formats when inference is ambiguous, accepting a
//     format only if every value of the column parses (ProbeFormat)
//   - Moving future birth dates back one century (CenturyCorrector)
//   - Driving the per-column state machine and the sibling-format rule
//     (Normalizer)
//
// Design constraints:
//   - Pure in-memory computation: no I/O, no goroutines, no global state.
//     "Now" comes from an injected Clock.
//   - A date problem never fails the batch. Column problems degrade the
//     column to cleaned strings; value problems keep the original value. Both
//     are reported through Report and the error taxonomy in errors.go.
//   - One format per column. Compact formats are never mixed across rows.
package dates
