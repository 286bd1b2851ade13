package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"datenorm/internal/config"
	"datenorm/internal/dates"
	"datenorm/internal/logger"
	"datenorm/internal/metrics"
	"datenorm/internal/metrics/datadog"

	"github.com/golang-sql/civil"
)

// engineConfig turns the dates section into a dates.Config. With
// use_defaults the built-in rules fill every name not configured explicitly.
func engineConfig(d config.Dates, log logger.Logger) (dates.Config, error) {
	cfg := dates.Config{Logger: log}

	listed := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		cfg.Rules = append(cfg.Rules, dates.ColumnRule{
			Name:     c.Name,
			Mode:     dates.Mode(c.Mode),
			Layout:   c.Layout,
			Birth:    c.Birth,
			Siblings: c.Siblings,
		})
		listed[c.Name] = true
	}
	if d.UseDefaults {
		for _, r := range dates.DefaultRules() {
			if !listed[r.Name] {
				cfg.Rules = append(cfg.Rules, r)
			}
		}
	}
	if len(cfg.Rules) == 0 {
		return dates.Config{}, fmt.Errorf("no date columns configured")
	}

	cfg.Months = dates.PortugueseMonths()
	if len(d.Months) > 0 {
		if len(d.Months) != 12 {
			return dates.Config{}, fmt.Errorf("want 12 month abbreviations, got %d", len(d.Months))
		}
		cfg.Months = dates.NewMonthTable(d.Months)
	}

	cfg.Clock = dates.SystemClock
	if d.Now != "" {
		now, err := civil.ParseDate(d.Now)
		if err != nil {
			return dates.Config{}, fmt.Errorf("dates.now: %w", err)
		}
		cfg.Clock = dates.FixedClock(now)
	}

	switch {
	case d.Promote != nil:
		cfg.Promote = d.Promote
	case d.UseDefaults:
		cfg.Promote = dates.DefaultPromote()
	}
	return cfg, nil
}

// auditRules uses the configured checkpoint or audits every rule's column.
func auditRules(d config.Dates, rules []dates.ColumnRule) []dates.AuditRule {
	if len(d.Audit) == 0 {
		return dates.DefaultAuditRules(rules)
	}
	out := make([]dates.AuditRule, 0, len(d.Audit))
	for _, a := range d.Audit {
		out = append(out, dates.AuditRule{Column: a.Column, VerifyNulls: a.VerifyNulls})
	}
	return out
}

// initMetrics installs the configured backend and returns its cleanup.
// Extra Datadog tags may also come from METRICS_TAGS ("k:v,k2:v2").
func initMetrics(ctx context.Context, m config.Metrics, job string, log logger.Logger) (func(), error) {
	switch m.Backend {
	case "", "none":
		log.Debug("metrics disabled")
		return func() {}, nil
	case "datadog":
		tags := append(slices.Clone(m.Tags), datadog.ParseTags(os.Getenv("METRICS_TAGS"))...)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		log.Info("metrics enabled", "backend", "datadog", "job", job, "tags", tags)
		return func() {
			// Close stops the flush loop and submits what is left.
			if err := b.Close(); err != nil {
				log.Warn("metrics close", "err", err)
			}
			metrics.SetBackend(nil)
		}, nil
	}
	return nil, fmt.Errorf("unknown metrics backend %q", m.Backend)
}
