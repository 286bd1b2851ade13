package dates

import (
	"fmt"
	"strings"

	"github.com/golang-sql/civil"

	"datenorm/internal/frame"
)

// maxStrangeValues caps the samples kept per audited column.
const maxStrangeValues = 10

// AuditRule selects a column for the post-normalization checkpoint.
type AuditRule struct {
	Column string
	// VerifyNulls makes null cells count as findings.
	VerifyNulls bool
}

// AuditFinding summarizes the non-date cells of one column.
type AuditFinding struct {
	Column string
	Total  int
	Nulls  int
	// VerifyNulls echoes the rule; when false Nulls is informational.
	VerifyNulls bool
	// Strange holds up to ten distinct values that are neither dates nor
	// null, in first-seen order.
	Strange      []string
	StrangeCount int
}

// OK reports whether the column passed the checkpoint.
func (f AuditFinding) OK() bool {
	return f.StrangeCount == 0 && (!f.VerifyNulls || f.Nulls == 0)
}

func (f AuditFinding) String() string {
	return fmt.Sprintf("%s: %d/%d null, %d strange %v", f.Column, f.Nulls, f.Total, f.StrangeCount, f.Strange)
}

// DefaultAuditRules audits every rule's column, skipping null checks for
// cancellation columns where blanks are expected.
func DefaultAuditRules(rules []ColumnRule) []AuditRule {
	out := make([]AuditRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, AuditRule{Column: r.Name, VerifyNulls: !strings.HasPrefix(r.Name, "cancelamento")})
	}
	return out
}

// Audit inspects already normalized columns. Missing columns are skipped.
func Audit(f frame.Frame, rules []AuditRule) []AuditFinding {
	var out []AuditFinding
	for _, r := range rules {
		values, ok := f.Column(r.Column)
		if !ok {
			continue
		}
		fd := AuditFinding{Column: r.Column, Total: len(values), VerifyNulls: r.VerifyNulls}
		seen := map[string]bool{}
		for _, v := range values {
			switch x := v.(type) {
			case nil:
				fd.Nulls++
			case civil.Date:
			default:
				fd.StrangeCount++
				s := fmt.Sprint(x)
				if !seen[s] && len(fd.Strange) < maxStrangeValues {
					seen[s] = true
					fd.Strange = append(fd.Strange, s)
				}
			}
		}
		out = append(out, fd)
	}
	return out
}
