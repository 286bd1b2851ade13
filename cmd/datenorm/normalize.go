package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"datenorm/internal/config"
	"datenorm/internal/dates"
	"datenorm/internal/frame"
	"datenorm/internal/logger"
	"datenorm/internal/metrics"
	"datenorm/internal/parser"
	"datenorm/internal/storage"
	"datenorm/internal/transformer"

	"github.com/golang-sql/civil"
	"github.com/spf13/cobra"
)

func newNormalizeCmd(deps appDeps, rf *rootFlags) *cobra.Command {
	var cfgPath, input, output string
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Read an export, normalize its date columns and write the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfgPath == "" {
				return usagef("normalize needs --config")
			}
			p, err := deps.load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if input != "" {
				p.Source.File.Path = input
			}
			if output != "" {
				p.Output.Path = output
			}
			if p.Source.File.Path == "" {
				return usagef("no input: set source.file.path or pass --input")
			}
			if printIssues(cmd.ErrOrStderr(), config.ValidatePipeline(p)) {
				return fmt.Errorf("invalid configuration %s", cfgPath)
			}

			log := newLogger(cmd, p.Log, rf).With("job", p.Job)
			ctx := logger.ContextWithLogger(cmd.Context(), log)

			cleanup, err := deps.initMetrics(ctx, p.Metrics, p.Job, log)
			if err != nil {
				return fmt.Errorf("init metrics: %w", err)
			}
			defer cleanup()

			return runPipeline(ctx, p, deps, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "pipeline config JSON path")
	cmd.Flags().StringVar(&input, "input", "", "input file (overrides source.file.path)")
	cmd.Flags().StringVar(&output, "output", "", "output CSV path (overrides output.path)")
	return cmd
}

// timed runs one pipeline step, records its metrics and prefixes its error.
func timed(step string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(step, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}

// runPipeline is read -> competencia -> normalize -> audit -> write -> store.
func runPipeline(ctx context.Context, p config.Pipeline, deps appDeps, stdout io.Writer) error {
	log := logger.FromContext(ctx)
	path := p.Source.File.Path
	start := time.Now()

	cfg, err := engineConfig(p.Dates, log)
	if err != nil {
		return fmt.Errorf("dates config: %w", err)
	}
	norm, err := dates.NewNormalizer(cfg)
	if err != nil {
		return fmt.Errorf("dates config: %w", err)
	}

	var in frame.Frame
	err = timed("read", func() error {
		var kind string
		var rerr error
		in, kind, rerr = parser.ReadFile(ctx, path, p.Parser, func(line int, err error) {
			log.Warn("skipping malformed record", "line", line, "err", err)
			metrics.RecordValues("malformed_record", 1)
		})
		if rerr == nil {
			log.Info("input read", "path", path, "kind", kind, "rows", in.Len(), "columns", len(in.Columns()))
		}
		return rerr
	})
	if err != nil {
		return err
	}

	if p.Dates.CompetenciaFromPath && !in.Has("competencia") {
		in = fillCompetencia(in, path, log)
	}

	var out frame.Frame
	var rep dates.Report
	_ = timed("normalize", func() error {
		out, rep = norm.Normalize(in)
		return rep.Err()
	})
	recordReport(rep)

	_ = timed("audit", func() error {
		for _, fd := range dates.Audit(out, auditRules(p.Dates, cfg.Rules)) {
			if fd.OK() {
				continue
			}
			metrics.RecordValues("audit_strange", fd.StrangeCount)
			log.Warn("date checkpoint", "column", fd.Column, "nulls", fd.Nulls, "total", fd.Total,
				"verify_nulls", fd.VerifyNulls, "strange", fd.StrangeCount, "samples", fd.Strange)
		}
		return nil
	})

	if p.Output.Path != "" || p.Storage.Kind == "" {
		if err := timed("write", func() error { return writeOutput(out, p.Output, stdout) }); err != nil {
			return err
		}
	}

	if p.Storage.Kind != "" {
		if err := timed("store", func() error { return store(ctx, p, deps, out, rep) }); err != nil {
			return err
		}
	}

	degraded := rep.Degraded()
	log.Info("run complete", "rows", out.Len(), "degraded", len(degraded), "elapsed", time.Since(start).Truncate(time.Millisecond))
	if p.Dates.FailOnDegraded && len(degraded) > 0 {
		return fmt.Errorf("%d degraded column(s): %w", len(degraded), rep.Err())
	}
	return nil
}

// fillCompetencia adds a constant competencia column taken from the path.
func fillCompetencia(f frame.Frame, path string, log logger.Logger) frame.Frame {
	d, ok := dates.CompetenciaFromPath(path)
	if !ok {
		log.Warn("no competencia in path", "path", path)
		return f
	}
	col := make([]any, f.Len())
	for i := range col {
		col[i] = d
	}
	out, err := f.WithColumn("competencia", col)
	if err != nil {
		log.Warn("competencia column", "err", err)
		return f
	}
	log.Debug("competencia from path", "value", d)
	return out
}

func recordReport(rep dates.Report) {
	for _, c := range rep.Columns {
		metrics.RecordColumn(c.Column, c.Outcome.String(), c.Source)
		if c.Outcome == dates.OutcomeNotPresent {
			continue
		}
		metrics.RecordValues("parsed", c.Parsed)
		metrics.RecordValues("null", c.Nulls)
		metrics.RecordValues("corrected", c.Corrected)
		metrics.RecordValues("unparseable", len(c.Values))
	}
}

// writeOutput writes CSV to o.Path, or to stdout when no path is set.
func writeOutput(f frame.Frame, o config.Output, stdout io.Writer) (err error) {
	w := stdout
	if o.Path != "" {
		fh, err := os.Create(o.Path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := fh.Close(); err == nil {
				err = cerr
			}
		}()
		w = fh
	}
	comma := config.Options{"d": o.Delimiter}.Rune("d", ';')
	return writeCSV(w, f, comma, o.DateLayout)
}

// writeCSV renders dates with layout (a Go reference layout) and nil as "".
func writeCSV(w io.Writer, f frame.Frame, comma rune, layout string) error {
	if layout == "" {
		layout = time.DateOnly
	}
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(f.Columns()); err != nil {
		return err
	}
	rec := make([]string, len(f.Columns()))
	for _, row := range f.Rows() {
		for i, v := range row {
			switch x := v.(type) {
			case nil:
				rec[i] = ""
			case civil.Date:
				rec[i] = x.In(time.UTC).Format(layout)
			default:
				rec[i] = fmt.Sprint(x)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// store writes the frame, keyed by row hash, and the column outcomes.
func store(ctx context.Context, p config.Pipeline, deps appDeps, out frame.Frame, rep dates.Report) error {
	log := logger.FromContext(ctx)
	db := p.Storage.DB

	hashed, err := transformer.HashFrame(out, transformer.HashSpec{Fields: db.KeyColumns, TrimSpace: true})
	if err != nil {
		return err
	}

	repo, err := deps.openRepo(ctx, storage.Config{Kind: p.Storage.Kind, DSN: db.DSN})
	if err != nil {
		return err
	}
	defer repo.Close()

	cols := hashed.Columns()
	spec := storage.DataTable(db.Table, cols, dateColumns(hashed), transformer.DefaultHashColumn)
	if db.AutoCreateTable {
		if err := repo.EnsureTable(ctx, spec); err != nil {
			return err
		}
	}
	n, err := storage.InsertBatched(ctx, repo, db.Table, cols, hashed.Rows(), []string{transformer.DefaultHashColumn})
	if err != nil {
		return err
	}
	log.Info("rows stored", "table", db.Table, "inserted", n, "skipped", int64(hashed.Len())-n)

	if db.OutcomesTable == "" {
		return nil
	}
	if db.AutoCreateTable {
		if err := repo.EnsureTable(ctx, storage.OutcomesTable(db.OutcomesTable)); err != nil {
			return err
		}
	}
	rows := outcomeRows(deps.newRunID(), p.Job, p.Source.File.Path, deps.now().UTC(), rep)
	if _, err := storage.InsertBatched(ctx, repo, db.OutcomesTable, storage.OutcomeColumns, rows, []string{"run_id", "column_name"}); err != nil {
		return fmt.Errorf("outcomes: %w", err)
	}
	return nil
}

// dateColumns lists columns whose non-nil cells are all dates, with at least
// one date. Degraded columns and columns with unparseable values stay text.
func dateColumns(f frame.Frame) map[string]bool {
	out := map[string]bool{}
	for _, c := range f.Columns() {
		values, _ := f.Column(c)
		seen := false
		ok := true
		for _, v := range values {
			switch v.(type) {
			case nil:
			case civil.Date:
				seen = true
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if ok && seen {
			out[c] = true
		}
	}
	return out
}

// outcomeRows has one row per present column, in storage.OutcomeColumns order.
func outcomeRows(runID, job, path string, at time.Time, rep dates.Report) [][]any {
	var rows [][]any
	for _, c := range rep.Columns {
		if c.Outcome == dates.OutcomeNotPresent {
			continue
		}
		rows = append(rows, []any{
			runID, job, path, c.Column, string(c.Mode), c.Outcome.String(),
			nullIfEmpty(c.Format.Layout()), nullIfEmpty(c.Source), nullIfEmpty(c.Sibling), nullIfEmpty(dates.Kind(c.Err)),
			int64(c.Parsed), int64(c.Nulls), int64(c.Corrected), int64(len(c.Values)), at,
		})
	}
	return rows
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
