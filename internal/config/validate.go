package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of ValidatePipeline. Path uses JSON field names
// ("dates.columns[2].mode").
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidatePipeline checks field constraints and cross-field rules. It never
// stops at the first problem.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if err := structValidator.Struct(p); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			for _, fe := range ves {
				add(SeverityError, issuePath(fe.Namespace()), "value %v fails %q", fe.Value(), constraint(fe))
			}
		} else {
			add(SeverityError, "", "%v", err)
		}
	}

	compact := map[string]bool{}
	seen := map[string]bool{}
	for i, c := range p.Dates.Columns {
		path := fmt.Sprintf("dates.columns[%d]", i)
		if seen[c.Name] && c.Name != "" {
			add(SeverityError, path+".name", "column %q listed twice", c.Name)
		}
		seen[c.Name] = true
		if c.Mode == "compact" {
			compact[c.Name] = true
		}
		if c.Mode == "layout" && c.Layout == "" {
			add(SeverityError, path+".layout", "layout mode needs a Go time layout")
		}
		if c.Mode != "layout" && c.Layout != "" {
			add(SeverityWarning, path+".layout", "layout is ignored in %s mode", c.Mode)
		}
		if len(c.Siblings) > 0 && c.Mode != "compact" {
			add(SeverityError, path+".siblings", "only compact columns can borrow a sibling format")
		}
		for _, sib := range c.Siblings {
			if sib == "" || sib == c.Name {
				add(SeverityError, path+".siblings", "sibling %q is empty or the column itself", sib)
			}
		}
	}
	for i, c := range p.Dates.Columns {
		if p.Dates.UseDefaults {
			continue
		}
		for _, sib := range c.Siblings {
			if sib != "" && sib != c.Name && !compact[sib] {
				add(SeverityWarning, fmt.Sprintf("dates.columns[%d].siblings", i), "sibling %q is not a configured compact column", sib)
			}
		}
	}

	if n := len(p.Dates.Months); n != 0 && n != 12 {
		add(SeverityError, "dates.months", "want 12 month abbreviations, got %d", n)
	}
	if p.Dates.Now != "" {
		if _, err := time.Parse("2006-01-02", p.Dates.Now); err != nil {
			add(SeverityError, "dates.now", "want YYYY-MM-DD: %v", err)
		}
	}
	if len(p.Dates.Columns) == 0 && !p.Dates.UseDefaults {
		add(SeverityError, "dates.columns", "no date columns configured and use_defaults is false")
	}

	if p.Storage.Kind != "" {
		if p.Storage.DB.DSN == "" {
			add(SeverityError, "storage.db.dsn", "required when storage.kind is set")
		}
		if p.Storage.DB.Table == "" {
			add(SeverityError, "storage.db.table", "required when storage.kind is set")
		}
		if p.Storage.Kind == "sqlite" && strings.Contains(p.Storage.DB.Table, ".") {
			add(SeverityError, "storage.db.table", "sqlite tables must not be schema-qualified")
		}
	}
	if p.Storage.Kind == "" && p.Output.Path == "" {
		add(SeverityWarning, "output.path", "no output path or storage configured; CSV goes to stdout")
	}
	if d := p.Output.Delimiter; d != "" && d != `\t` && len([]rune(d)) != 1 {
		add(SeverityError, "output.delimiter", "want a single character, got %q", d)
	}
	if p.Metrics.Backend == "datadog" && p.Metrics.FlushEvery < 0 {
		add(SeverityError, "metrics.flush_every", "must not be negative")
	}
	if p.Source.File.Path == "" {
		add(SeverityWarning, "source.file.path", "empty; pass --input on the command line")
	}

	return issues
}

// issuePath drops the root type name: "Pipeline.dates.columns[0].mode" ->
// "dates.columns[0].mode".
func issuePath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func constraint(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}
