package dates

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-sql/civil"

	"datenorm/internal/frame"
	"datenorm/internal/logger"
)

// State is a step of the per-column state machine.
type State uint8

const (
	StateNotPresent State = iota
	StateInferring
	StateDirectParse
	StateFallbackProbing
	StateApplying
	StateApplied
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateNotPresent:
		return "not_present"
	case StateInferring:
		return "inferring"
	case StateDirectParse:
		return "direct_parse"
	case StateFallbackProbing:
		return "fallback_probing"
	case StateApplying:
		return "applying"
	case StateApplied:
		return "applied"
	case StateDegraded:
		return "degraded"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Outcome is the terminal result of a column.
type Outcome uint8

const (
	OutcomeNotPresent Outcome = iota
	OutcomeApplied
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDegraded:
		return "degraded"
	}
	return "not_present"
}

// Format sources recorded in ColumnReport.Source.
const (
	SourceInferred = "inferred"
	SourceSibling  = "sibling"
	SourceProbed   = "probed"
	SourceCascade  = "cascade"
	SourceLayout   = "layout"
	SourceEmpty    = "empty"
)

// ColumnReport describes what happened to one configured column.
type ColumnReport struct {
	Column  string
	Mode    Mode
	Path    []State
	Outcome Outcome
	// Format is the compact format applied (zero for text columns and for
	// degraded columns).
	Format Format
	// Source tells where Format came from, or which parser handled a text
	// column.
	Source string
	// Sibling is set when Format was borrowed from another column.
	Sibling string
	// Inference is the trace of this column's own inference, if one ran.
	Inference *Inference
	// Err is the column-level error; nil for clean Applied columns.
	Err error
	// Values lists value-level failures in row order.
	Values []*ValueError

	Parsed    int
	Nulls     int
	Corrected int
}

// Report collects the column reports of one Normalize call, in rule order.
type Report struct {
	Columns []ColumnReport
}

// Column returns the report of the named column.
func (r Report) Column(name string) (ColumnReport, bool) {
	for _, c := range r.Columns {
		if c.Column == name {
			return c, true
		}
	}
	return ColumnReport{}, false
}

// Degraded lists the columns that ended Degraded.
func (r Report) Degraded() []ColumnReport {
	var out []ColumnReport
	for _, c := range r.Columns {
		if c.Outcome == OutcomeDegraded {
			out = append(out, c)
		}
	}
	return out
}

// Err joins every column-level error, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, c := range r.Columns {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errors.Join(errs...)
}

// Normalizer applies the configured column rules to a frame.
type Normalizer struct {
	rules   []ColumnRule
	byName  map[string]ColumnRule
	parser  *Parser
	century CenturyCorrector
	promote map[string]string
	log     logger.Logger
}

// NewNormalizer validates cfg and fills its defaults.
func NewNormalizer(cfg Config) (*Normalizer, error) {
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if err := validateRules(cfg.Rules); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewForTests()
	}
	n := &Normalizer{
		rules:   append([]ColumnRule(nil), cfg.Rules...),
		byName:  make(map[string]ColumnRule, len(cfg.Rules)),
		parser:  NewParser(cfg.Months, cfg.Clock),
		century: CenturyCorrector{Clock: cfg.Clock},
		promote: cfg.Promote,
		log:     cfg.Logger,
	}
	for _, r := range n.rules {
		n.byName[r.Name] = r
	}
	return n, nil
}

// Parser exposes the cascade used for text columns.
func (n *Normalizer) Parser() *Parser { return n.parser }

// compactResolution is the memoized inference of one compact column.
type compactResolution struct {
	tokens []string // cleaned, null-like removed
	width  int
	inf    Inference
	err    error
}

// run holds the per-call memo shared by sibling columns. It is only read
// after a column's first resolution.
type run struct {
	in       frame.Frame
	resolved map[string]*compactResolution
}

func (r *run) resolve(column string) *compactResolution {
	if res, ok := r.resolved[column]; ok {
		return res
	}
	values, _ := r.in.Column(column)
	res := &compactResolution{}
	for _, v := range values {
		if tok, null := compactToken(v); !null {
			res.tokens = append(res.tokens, tok)
		}
	}
	if len(res.tokens) > 0 {
		res.width, res.err = uniformWidth(res.tokens)
		if res.err == nil {
			res.inf, res.err = Inspect(res.tokens)
		}
	}
	r.resolved[column] = res
	return res
}

// Normalize returns a new frame where every configured column that is
// present holds civil.Date, nil or (for degraded columns and unparseable
// values) strings. The input frame is not modified.
func (n *Normalizer) Normalize(in frame.Frame) (frame.Frame, Report) {
	st := &run{in: in, resolved: map[string]*compactResolution{}}
	out := in
	rep := Report{Columns: make([]ColumnReport, 0, len(n.rules))}

	for _, rule := range n.rules {
		values, ok := in.Column(rule.Name)
		if !ok {
			rep.Columns = append(rep.Columns, ColumnReport{
				Column: rule.Name, Mode: rule.Mode,
				Path: []State{StateNotPresent}, Outcome: OutcomeNotPresent,
			})
			continue
		}

		var col []any
		var cr ColumnReport
		switch rule.Mode {
		case ModeCompact:
			col, cr = n.compact(rule, values, st)
		default:
			col, cr = n.direct(rule, values)
		}
		if rule.Birth && cr.Outcome == OutcomeApplied {
			cr.Corrected = n.correctCentury(col)
		}
		n.logColumn(cr)

		// Same length as the input column, so WithColumn cannot fail.
		out, _ = out.WithColumn(rule.Name, col)
		rep.Columns = append(rep.Columns, cr)
	}

	return n.applyPromotions(out), rep
}

// NormalizeColumn runs one rule on a standalone column. Sibling links are
// ignored because there is no frame to look them up in.
func (n *Normalizer) NormalizeColumn(rule ColumnRule, values []any) ([]any, ColumnReport) {
	rule.Siblings = nil
	f, err := frame.New([]string{rule.Name}, map[string][]any{rule.Name: values})
	if err != nil {
		return values, ColumnReport{Column: rule.Name, Err: err}
	}
	st := &run{in: f, resolved: map[string]*compactResolution{}}
	var col []any
	var cr ColumnReport
	if rule.Mode == ModeCompact {
		col, cr = n.compact(rule, values, st)
	} else {
		col, cr = n.direct(rule, values)
	}
	if rule.Birth && cr.Outcome == OutcomeApplied {
		cr.Corrected = n.correctCentury(col)
	}
	return col, cr
}

func (n *Normalizer) compact(rule ColumnRule, values []any, st *run) ([]any, ColumnReport) {
	cr := ColumnReport{Column: rule.Name, Mode: ModeCompact, Path: []State{StateInferring}}
	own := st.resolve(rule.Name)

	if len(own.tokens) == 0 {
		cr.Path = append(cr.Path, StateApplying, StateApplied)
		cr.Outcome = OutcomeApplied
		cr.Source = SourceEmpty
		cr.Nulls = len(values)
		return make([]any, len(values)), cr
	}
	if errors.Is(own.err, ErrUnsupportedInput) {
		return n.degrade(cr, values, own.err)
	}

	format, err := Format{}, own.err
	cr.Source = SourceInferred
	for _, name := range rule.Siblings {
		if !st.in.Has(name) {
			continue
		}
		if sib := st.resolve(name); sib.width == own.width && !errors.Is(sib.err, ErrUnsupportedInput) {
			cr.Source = SourceSibling
			cr.Sibling = name
			format, err = sib.inf.Format, sib.err
			break
		}
	}
	if cr.Source == SourceInferred {
		inf := own.inf
		cr.Inference = &inf
		format = own.inf.Format
	}

	if err != nil {
		n.log.Debug("compact inference ambiguous, probing", "column", rule.Name, "reason", err)
		cr.Path = append(cr.Path, StateFallbackProbing)
		cr.Sibling = ""
		format, err = ProbeFormat(own.tokens, own.width)
		if err != nil {
			return n.degrade(cr, values, err)
		}
		cr.Source = SourceProbed
	}

	cr.Path = append(cr.Path, StateApplying)
	cr.Format = format
	out := make([]any, len(values))
	for i, v := range values {
		tok, null := compactToken(v)
		if null {
			cr.Nulls++
			continue
		}
		d, perr := format.Parse(tok)
		if perr != nil {
			out[i] = tok
			cr.Values = append(cr.Values, &ValueError{Column: rule.Name, Row: i, Value: tok, Rule: format.Layout(), Err: ErrSingleValueUnparseable})
			continue
		}
		out[i] = d
		cr.Parsed++
	}
	cr.Path = append(cr.Path, StateApplied)
	cr.Outcome = OutcomeApplied
	return out, cr
}

// degrade leaves cleaned tokens in place; null-like tokens still become nil.
func (n *Normalizer) degrade(cr ColumnReport, values []any, cause error) ([]any, ColumnReport) {
	cr.Path = append(cr.Path, StateDegraded)
	cr.Outcome = OutcomeDegraded
	cr.Format = Format{}
	cr.Source = ""
	cr.Err = &ColumnError{Column: cr.Column, Err: cause}
	out := make([]any, len(values))
	for i, v := range values {
		tok, null := compactToken(v)
		if null {
			cr.Nulls++
			continue
		}
		out[i] = tok
	}
	return out, cr
}

func (n *Normalizer) direct(rule ColumnRule, values []any) ([]any, ColumnReport) {
	cr := ColumnReport{
		Column: rule.Name, Mode: rule.Mode,
		Path:   []State{StateDirectParse, StateApplying},
		Source: SourceCascade,
	}
	if rule.Mode == ModeLayout {
		cr.Source = SourceLayout
	}

	out := make([]any, len(values))
	for i, v := range values {
		var (
			parsed any
			err    error
		)
		if rule.Mode == ModeLayout {
			parsed, err = parseLayoutValue(rule.Layout, v)
		} else {
			parsed, err = n.parser.ParseValue(v)
		}
		out[i] = parsed
		switch {
		case err != nil:
			ve := &ValueError{Column: rule.Name, Row: i, Value: fmt.Sprint(v), Err: ErrSingleValueUnparseable}
			var inner *ValueError
			if errors.As(err, &inner) {
				ve.Rule = inner.Rule
			}
			cr.Values = append(cr.Values, ve)
		case parsed == nil:
			cr.Nulls++
		default:
			cr.Parsed++
		}
	}
	cr.Path = append(cr.Path, StateApplied)
	cr.Outcome = OutcomeApplied
	return out, cr
}

func parseLayoutValue(layout string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case civil.Date:
		return x, nil
	case time.Time:
		return civil.DateOf(x), nil
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if IsNullToken(s) {
		return nil, nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return v, &ValueError{Value: s, Rule: SourceLayout, Err: ErrSingleValueUnparseable}
	}
	return civil.DateOf(t), nil
}

func (n *Normalizer) correctCentury(col []any) int {
	fixed := 0
	for i, v := range col {
		d, ok := v.(civil.Date)
		if !ok {
			continue
		}
		if c, changed := n.century.Correct(d); changed {
			col[i] = c
			fixed++
		}
	}
	return fixed
}

func (n *Normalizer) applyPromotions(f frame.Frame) frame.Frame {
	if len(n.promote) == 0 {
		return f
	}
	sources := make([]string, 0, len(n.promote))
	for src := range n.promote {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		values, ok := f.Column(src)
		if !ok {
			continue
		}
		dst := n.promote[src]
		// Lengths always match inside one frame.
		f, _ = f.WithColumn(dst, values)
		f = f.Drop(src)
	}
	return f
}

func (n *Normalizer) logColumn(cr ColumnReport) {
	kv := []any{"column", cr.Column, "outcome", cr.Outcome.String(), "path", cr.Path}
	if !cr.Format.IsZero() {
		kv = append(kv, "format", cr.Format.Layout(), "source", cr.Source)
	}
	if cr.Sibling != "" {
		kv = append(kv, "sibling", cr.Sibling)
	}
	if len(cr.Values) > 0 {
		kv = append(kv, "unparseable", len(cr.Values))
	}
	switch {
	case cr.Outcome == OutcomeDegraded:
		n.log.Warn("date column degraded", append(kv, "reason", cr.Err, "kind", Kind(cr.Err))...)
	case len(cr.Values) > 0:
		n.log.Warn("date column has unparseable values", kv...)
	default:
		n.log.Debug("date column normalized", kv...)
	}
}

// compactToken cleans a compact-column cell. The second result reports a
// null-like value.
func compactToken(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		s = x
	case civil.Date:
		s = x.String()
	case time.Time:
		s = x.Format("2006-01-02")
	default:
		s = fmt.Sprint(x)
	}
	tok := CleanToken(s)
	return tok, IsNullToken(tok)
}
