package dates

import (
	"fmt"

	"datenorm/internal/logger"
)

// Mode selects how a column is normalized.
type Mode string

const (
	// ModeCompact columns hold 6- or 8-digit codes with unknown field order.
	ModeCompact Mode = "compact"
	// ModeText columns hold free-form strings parsed by the cascade.
	ModeText Mode = "text"
	// ModeLayout columns are parsed with a fixed Go time layout.
	ModeLayout Mode = "layout"
)

// ColumnRule configures one date-bearing column.
type ColumnRule struct {
	Name string
	Mode Mode
	// Layout is a Go reference layout such as "02/01/2006" (ModeLayout only).
	Layout string
	// Birth enables century correction.
	Birth bool
	// Siblings lists compact columns whose resolved format this column
	// reuses. The first one present with the same token width wins, so a
	// rule can name one sibling per code width.
	Siblings []string
}

// Config is everything the Normalizer needs. Zero fields take defaults:
// DefaultRules, PortugueseMonths, SystemClock and a silent logger.
type Config struct {
	Rules  []ColumnRule
	Months MonthTable
	Clock  Clock
	Logger logger.Logger
	// Promote moves a column onto another after normalization, replacing the
	// target and dropping the source (source -> target).
	Promote map[string]string
}

// DefaultRules is the column set of the benefits exports.
func DefaultRules() []ColumnRule {
	rules := []ColumnRule{
		// nascimento_2 carries the 8-digit codes, nascimento the 6-digit ones.
		{Name: "inclusao_plano_real", Mode: ModeCompact, Siblings: []string{"nascimento_2", "nascimento"}},
		{Name: "cancelamento_plano_real", Mode: ModeCompact, Siblings: []string{"nascimento_2", "nascimento"}},
		{Name: "nascimento_2", Mode: ModeCompact, Birth: true},
		{Name: "data_inicio", Mode: ModeCompact, Siblings: []string{"nascimento"}},
		{Name: "data_pagamento", Mode: ModeCompact, Siblings: []string{"nascimento"}},
		{Name: "nascimento", Mode: ModeCompact, Birth: true},
		{Name: "data_de_nascimento", Mode: ModeCompact, Birth: true},
	}
	for _, name := range []string{
		"competencia", "data_realizacao", "data_exclusao", "inclusao_plano",
		"cancelamento_plano", "data", "data_fim", "inicio_internacao",
		"alta_internacao", "data_de_admissao", "data_inclusao",
	} {
		rules = append(rules, ColumnRule{Name: name, Mode: ModeText})
	}
	return rules
}

// DefaultPromote replaces nascimento with nascimento_2 when the latter exists.
func DefaultPromote() map[string]string {
	return map[string]string{"nascimento_2": "nascimento"}
}

// DefaultConfig returns the defaults with the given clock.
func DefaultConfig(clock Clock) Config {
	return Config{
		Rules:   DefaultRules(),
		Months:  PortugueseMonths(),
		Clock:   clock,
		Promote: DefaultPromote(),
	}
}

// validateRules checks names are unique and modes are usable.
func validateRules(rules []ColumnRule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			return fmt.Errorf("dates: rule %d has no column name", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("dates: column %q configured twice", r.Name)
		}
		seen[r.Name] = true
		switch r.Mode {
		case ModeCompact, ModeText:
		case ModeLayout:
			if r.Layout == "" {
				return fmt.Errorf("dates: column %q uses layout mode without a layout", r.Name)
			}
		default:
			return fmt.Errorf("dates: column %q has unknown mode %q", r.Name, r.Mode)
		}
		if len(r.Siblings) > 0 && r.Mode != ModeCompact {
			return fmt.Errorf("dates: column %q has a sibling but is not compact", r.Name)
		}
		for _, sib := range r.Siblings {
			if sib == "" || sib == r.Name {
				return fmt.Errorf("dates: column %q has an invalid sibling %q", r.Name, sib)
			}
		}
	}
	return nil
}
