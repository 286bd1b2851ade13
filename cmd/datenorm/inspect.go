package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"datenorm/internal/config"
	"datenorm/internal/dates"
	"datenorm/internal/logger"
	"datenorm/internal/parser"
	"datenorm/internal/probe"

	"github.com/golang-sql/civil"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var now string
	var months []string
	cmd := &cobra.Command{
		Use:   "parse VALUE...",
		Short: "Run the text cascade on values and print the date or the failure",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("parse needs at least one value")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			clock := dates.SystemClock
			if now != "" {
				d, err := civil.ParseDate(now)
				if err != nil {
					return usagef("--now: %v", err)
				}
				clock = dates.FixedClock(d)
			}
			table := dates.PortugueseMonths()
			if len(months) > 0 {
				if len(months) != 12 {
					return usagef("--months needs 12 abbreviations, got %d", len(months))
				}
				table = dates.NewMonthTable(months)
			}

			p := dates.NewParser(table, clock)
			w := cmd.OutOrStdout()
			failed := 0
			for _, v := range args {
				d, rule, err := p.Parse(v)
				if err != nil {
					failed++
					fmt.Fprintf(w, "%s\t-\t%s\n", v, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", v, d, rule)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d value(s) unparseable", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&now, "now", "", "pin today's date (YYYY-MM-DD) for two-digit years")
	cmd.Flags().StringSliceVar(&months, "months", nil, "twelve month abbreviations, comma separated")
	return cmd
}

func newInferCmd(deps appDeps, rf *rootFlags) *cobra.Command {
	var cfgPath, input, column string
	var birth bool
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Resolve the field order of one compact date column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" || column == "" {
				return usagef("infer needs --input and --column")
			}
			p := config.Defaults()
			if cfgPath != "" {
				var err error
				if p, err = deps.load(cfgPath); err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			log := newLogger(cmd, p.Log, rf)

			f, _, err := parser.ReadFile(logger.ContextWithLogger(cmd.Context(), log), input, p.Parser, nil)
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			values, ok := f.Column(column)
			if !ok {
				return fmt.Errorf("column %q not found; columns: %s", column, strings.Join(f.Columns(), ", "))
			}

			cfg, err := engineConfig(p.Dates, log)
			if err != nil {
				return fmt.Errorf("dates config: %w", err)
			}
			n, err := dates.NewNormalizer(cfg)
			if err != nil {
				return fmt.Errorf("dates config: %w", err)
			}
			_, cr := n.NormalizeColumn(dates.ColumnRule{Name: column, Mode: dates.ModeCompact, Birth: birth}, values)
			printColumnReport(cmd, cr)
			if cr.Outcome == dates.OutcomeDegraded {
				return fmt.Errorf("column %q degraded: %s", column, dates.Kind(cr.Err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "pipeline config JSON path (parser options, dates.now)")
	cmd.Flags().StringVar(&input, "input", "", "input file")
	cmd.Flags().StringVar(&column, "column", "", "normalized column key")
	cmd.Flags().BoolVar(&birth, "birth", false, "apply century correction")
	return cmd
}

func printColumnReport(cmd *cobra.Command, cr dates.ColumnReport) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "column:      %s\n", cr.Column)
	fmt.Fprintf(w, "outcome:     %s\n", cr.Outcome)
	path := make([]string, len(cr.Path))
	for i, s := range cr.Path {
		path[i] = s.String()
	}
	fmt.Fprintf(w, "path:        %s\n", strings.Join(path, " -> "))
	if inf := cr.Inference; inf != nil {
		fmt.Fprintf(w, "width:       %d\n", inf.Width)
		fmt.Fprintf(w, "maxima:      %v\n", inf.Maxima)
		fmt.Fprintf(w, "tags:        %v\n", inf.Tags)
	}
	if !cr.Format.IsZero() {
		fmt.Fprintf(w, "format:      %s (%s)\n", cr.Format.Layout(), cr.Source)
	}
	if cr.Err != nil {
		fmt.Fprintf(w, "error:       %s: %v\n", dates.Kind(cr.Err), cr.Err)
	}
	fmt.Fprintf(w, "parsed:      %d\n", cr.Parsed)
	fmt.Fprintf(w, "nulls:       %d\n", cr.Nulls)
	fmt.Fprintf(w, "corrected:   %d\n", cr.Corrected)
	fmt.Fprintf(w, "unparseable: %d\n", len(cr.Values))
	for i, ve := range cr.Values {
		if i == 5 {
			fmt.Fprintf(w, "  ... %d more\n", len(cr.Values)-i)
			break
		}
		fmt.Fprintf(w, "  row %d: %q\n", ve.Row, ve.Value)
	}
}

func newValidateCmd(deps appDeps) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pipeline config and print its issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfgPath == "" {
				return usagef("validate needs --config")
			}
			p, err := deps.load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if printIssues(cmd.OutOrStdout(), config.ValidatePipeline(p)) {
				return fmt.Errorf("configuration %s is invalid", cfgPath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration %s is valid\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "pipeline config JSON path")
	return cmd
}

func newProbeCmd(rf *rootFlags) *cobra.Command {
	var (
		opt    probe.Options
		report bool
		now    string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Sample an export and print a draft pipeline config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opt.Path == "" {
				return usagef("probe needs --input")
			}
			switch opt.Backend {
			case "", "postgres", "mssql", "sqlite":
			default:
				return usagef("--backend must be postgres, mssql or sqlite")
			}
			if now != "" {
				d, err := civil.ParseDate(now)
				if err != nil {
					return usagef("--now: %v", err)
				}
				opt.Clock = dates.FixedClock(d)
			}
			log := newLogger(cmd, config.Log{Level: "info"}, rf)
			res, err := probe.Probe(logger.ContextWithLogger(cmd.Context(), log), opt)
			if err != nil {
				return err
			}
			if report {
				return probe.WriteReport(cmd.OutOrStdout(), res)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res.Pipeline)
		},
	}
	cmd.Flags().StringVar(&opt.Path, "input", "", "export to sample")
	cmd.Flags().StringVar(&opt.Parser.Kind, "parser", "auto", "auto, csv, html or json")
	cmd.Flags().IntVar(&opt.MaxRows, "rows", 500, "rows sampled per column")
	cmd.Flags().StringVar(&opt.Job, "job", "", "job name for the draft")
	cmd.Flags().StringVar(&opt.Backend, "backend", "", "add a storage section: postgres, mssql or sqlite")
	cmd.Flags().StringVar(&now, "now", "", "pin today's date (YYYY-MM-DD) for two-digit years")
	cmd.Flags().BoolVar(&report, "report", false, "print per-column statistics instead of the config")
	return cmd
}
