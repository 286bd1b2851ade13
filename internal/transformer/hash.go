package transformer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"datenorm/internal/frame"

	"github.com/golang-sql/civil"
)

// DefaultHashColumn is the column the sinks key their idempotent inserts on.
const DefaultHashColumn = "row_hash"

// HashSpec derives a stable SHA-256 key from selected columns so a rerun of
// the same file does not duplicate rows in the sink. Postgres treats NULLs in
// a UNIQUE key as distinct, so the sinks key on this hash instead of the
// natural columns.
//
// Canonical form: values joined by Separator (default 0x1f), nil encoded as
// "\x00" so it differs from "", civil.Date as YYYY-MM-DD and time.Time as
// RFC3339Nano in UTC. With IncludeFieldNames each part is "name=value".
type HashSpec struct {
	Fields            []string
	TargetField       string
	IncludeFieldNames bool
	Separator         string
	TrimSpace         bool
}

func (s HashSpec) target() string {
	if s.TargetField == "" {
		return DefaultHashColumn
	}
	return s.TargetField
}

// HashFrame returns f with the target column set to the row hash. An empty
// Fields list hashes every column except the target, in frame order.
func HashFrame(f frame.Frame, spec HashSpec) (frame.Frame, error) {
	target := spec.target()
	fields := spec.Fields
	if len(fields) == 0 {
		for _, c := range f.Columns() {
			if c != target {
				fields = append(fields, c)
			}
		}
	}
	cols := make([][]any, len(fields))
	for i, name := range fields {
		v, ok := f.Column(name)
		if !ok {
			return frame.Frame{}, fmt.Errorf("hash: missing field %q", name)
		}
		cols[i] = v
	}

	sep := spec.Separator
	if sep == "" {
		sep = "\x1f"
	}
	var b strings.Builder
	var scratch [64]byte
	out := make([]any, f.Len())
	for row := range out {
		b.Reset()
		for i, name := range fields {
			if i > 0 {
				b.WriteString(sep)
			}
			if spec.IncludeFieldNames {
				b.WriteString(name)
				b.WriteByte('=')
			}
			appendCanonical(&b, cols[i][row], spec.TrimSpace, &scratch)
		}
		sum := sha256.Sum256([]byte(b.String()))
		out[row] = hex.EncodeToString(sum[:])
	}
	return f.WithColumn(target, out)
}

func appendCanonical(b *strings.Builder, v any, trim bool, scratch *[64]byte) {
	switch t := v.(type) {
	case nil:
		b.WriteByte(0)
	case string:
		if trim && HasEdgeSpace(t) {
			t = strings.TrimSpace(t)
		}
		b.WriteString(t)
	case []byte:
		s := string(t)
		if trim && HasEdgeSpace(s) {
			s = strings.TrimSpace(s)
		}
		b.WriteString(s)
	case civil.Date:
		b.WriteString(t.String())
	case time.Time:
		if !t.IsZero() {
			t = t.UTC()
		}
		b.WriteString(t.Format(time.RFC3339Nano))
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case int:
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))
	case int32:
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))
	case int64:
		b.Write(strconv.AppendInt(scratch[:0], t, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	default:
		fmt.Fprintf(b, "%v", t)
	}
}
