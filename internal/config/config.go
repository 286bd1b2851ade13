// Package config defines the JSON pipeline document read by cmd/datenorm and
// the helpers used to load and validate it.
//
// A pipeline describes one normalization run:
//   - source:  where the input file lives
//   - parser:  how to read it (csv, html, json or auto) plus free-form options
//   - dates:   the column rules handed to the date engine
//   - output:  optional CSV output
//   - storage: optional database sink (postgres, mssql, sqlite)
//   - metrics: optional metrics backend
//   - log:     logger level and format
//
// Loading layers struct defaults, the JSON file and DATENORM_* environment
// variables (see Load).
package config

import (
	"strconv"
	"strings"
	"time"
)

// Pipeline is the top-level configuration document.
type Pipeline struct {
	Job     string  `json:"job" koanf:"job" validate:"required"`
	Source  Source  `json:"source" koanf:"source"`
	Parser  Parser  `json:"parser" koanf:"parser"`
	Dates   Dates   `json:"dates" koanf:"dates"`
	Output  Output  `json:"output" koanf:"output"`
	Storage Storage `json:"storage" koanf:"storage"`
	Metrics Metrics `json:"metrics" koanf:"metrics"`
	Log     Log     `json:"log" koanf:"log"`
}

// Source locates the input.
type Source struct {
	Kind string     `json:"kind" koanf:"kind" validate:"oneof=file"`
	File FileSource `json:"file" koanf:"file"`
}

// FileSource is a local file. Path may be overridden on the command line.
type FileSource struct {
	Path string `json:"path" koanf:"path"`
}

// Parser selects the reader. Kind "auto" picks html for files that start
// with markup, json for a leading '[' or '{' and csv otherwise.
type Parser struct {
	Kind    string  `json:"kind" koanf:"kind" validate:"oneof=auto csv html json"`
	Options Options `json:"options,omitempty" koanf:"options,omitempty"`
}

// DateColumn mirrors dates.ColumnRule in configuration form. Siblings are
// compact columns whose format this one reuses; the first present with the
// same code width wins.
type DateColumn struct {
	Name     string   `json:"name" koanf:"name" validate:"required"`
	Mode     string   `json:"mode" koanf:"mode" validate:"oneof=compact text layout"`
	Layout   string   `json:"layout,omitempty" koanf:"layout"`
	Birth    bool     `json:"birth,omitempty" koanf:"birth"`
	Siblings []string `json:"siblings,omitempty" koanf:"siblings"`
}

// AuditColumn selects a column for the post-run checkpoint.
type AuditColumn struct {
	Column      string `json:"column" koanf:"column" validate:"required"`
	VerifyNulls bool   `json:"verify_nulls" koanf:"verify_nulls"`
}

// Dates configures the date engine.
type Dates struct {
	// UseDefaults adds the built-in column rules for every name not listed in
	// Columns.
	UseDefaults bool         `json:"use_defaults" koanf:"use_defaults"`
	Columns     []DateColumn `json:"columns,omitempty" koanf:"columns,omitempty" validate:"dive"`
	// Months overrides the twelve month abbreviations (jan..dez).
	Months []string `json:"months,omitempty" koanf:"months,omitempty"`
	// Now pins the engine clock (YYYY-MM-DD). Empty means the wall clock.
	Now     string            `json:"now,omitempty" koanf:"now"`
	Promote map[string]string `json:"promote,omitempty" koanf:"promote,omitempty"`
	// CompetenciaFromPath fills a missing "competencia" column from the
	// input path (".../2023/07/...").
	CompetenciaFromPath bool          `json:"competencia_from_path" koanf:"competencia_from_path"`
	Audit               []AuditColumn `json:"audit,omitempty" koanf:"audit,omitempty" validate:"dive"`
	// FailOnDegraded turns degraded columns into a non-zero exit.
	FailOnDegraded bool `json:"fail_on_degraded" koanf:"fail_on_degraded"`
}

// Output writes the normalized frame as CSV.
type Output struct {
	Path       string `json:"path,omitempty" koanf:"path"`
	Delimiter  string `json:"delimiter,omitempty" koanf:"delimiter"`
	DateLayout string `json:"date_layout,omitempty" koanf:"date_layout"`
}

// Storage selects a database sink. An empty Kind disables it.
type Storage struct {
	Kind string   `json:"kind" koanf:"kind" validate:"omitempty,oneof=postgres mssql sqlite"`
	DB   DBConfig `json:"db" koanf:"db"`
}

// DBConfig holds backend settings.
type DBConfig struct {
	DSN   string `json:"dsn" koanf:"dsn"`
	Table string `json:"table" koanf:"table"`
	// OutcomesTable receives one row per column report. Empty disables it.
	OutcomesTable   string   `json:"outcomes_table,omitempty" koanf:"outcomes_table"`
	AutoCreateTable bool     `json:"auto_create_table" koanf:"auto_create_table"`
	KeyColumns      []string `json:"key_columns,omitempty" koanf:"key_columns,omitempty"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	Backend    string        `json:"backend" koanf:"backend" validate:"oneof=none datadog"`
	Tags       []string      `json:"tags,omitempty" koanf:"tags,omitempty"`
	FlushEvery time.Duration `json:"flush_every,omitempty" koanf:"flush_every"`
}

// Log configures the logger.
type Log struct {
	Level string `json:"level" koanf:"level" validate:"oneof=debug info warn error disabled"`
	JSON  bool   `json:"json" koanf:"json"`
}

// Defaults returns the baseline pipeline every load starts from.
func Defaults() Pipeline {
	return Pipeline{
		Job:     "datenorm",
		Source:  Source{Kind: "file"},
		Parser:  Parser{Kind: "auto"},
		Dates:   Dates{UseDefaults: true},
		Output:  Output{Delimiter: ";", DateLayout: "2006-01-02"},
		Metrics: Metrics{Backend: "none", FlushEvery: 60 * time.Second},
		Log:     Log{Level: "info"},
	}
}

// Options is a free-form option bag for readers. Values come from JSON
// (string, float64, bool, []any, map[string]any) or from environment
// variables (always strings), so every getter accepts both.
type Options map[string]any

// String returns the option as a string or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the option as a bool or def.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Int returns the option as an int or def.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string option or def. "\t" and "tab"
// both select a tab.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o[key].(string)
	if !ok || s == "" {
		return def
	}
	switch s {
	case `\t`, "tab":
		return '\t'
	}
	for _, r := range s {
		return r
	}
	return def
}

// StringSlice returns a list option. A comma-separated string is split.
func (o Options) StringSlice(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return nil
}

// StringMap returns a map option with string values. Non-string values are
// skipped.
func (o Options) StringMap(key string) map[string]string {
	switch v := o[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, x := range v {
			if s, ok := x.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}
