// Command datenorm normalizes the date columns of operator exports.
//
//	datenorm normalize --config pipeline.json [--input f] [--output out.csv]
//	datenorm parse [--now YYYY-MM-DD] VALUE...
//	datenorm infer --input f --column c [--config pipeline.json]
//	datenorm validate --config pipeline.json
//	datenorm probe --input f [--backend sqlite] [--report]
//
// Exit codes: 0 success, 1 run or validation failure, 2 usage error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"datenorm/internal/config"
	"datenorm/internal/logger"
	"datenorm/internal/storage"

	// Link every storage backend; the pipeline config picks one.
	_ "datenorm/internal/storage/all"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

// appDeps holds the side-effecting seams of the CLI so tests can replace them.
type appDeps struct {
	load        func(path string) (config.Pipeline, error)
	initMetrics func(ctx context.Context, m config.Metrics, job string, log logger.Logger) (func(), error)
	openRepo    func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	now         func() time.Time
	newRunID    func() string
}

func defaultDeps() appDeps {
	return appDeps{
		load:        config.Load,
		initMetrics: initMetrics,
		openRepo:    storage.New,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// usageError marks errors that exit with exitUsage.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, a ...any) error {
	return usageError{err: fmt.Errorf(format, a...)}
}

// runMain executes the command line and maps the result to an exit code.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	root := newRootCmd(deps)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "datenorm: %v\n", err)

	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return exitUsage
	}
	return exitRun
}

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	logLevel string
	logJSON  bool
}

func newRootCmd(deps appDeps) *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:           "datenorm",
		Short:         "Normalize date columns of tabular operator exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unknown command %q", args[0])
			}
			return usageError{err: errors.New("missing command; see datenorm --help")}
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err: err} })
	root.PersistentFlags().StringVar(&rf.logLevel, "log-level", "", "debug, info, warn, error or disabled (overrides log.level)")
	root.PersistentFlags().BoolVar(&rf.logJSON, "log-json", false, "log as JSON (overrides log.json)")

	root.AddCommand(
		newNormalizeCmd(deps, &rf),
		newParseCmd(),
		newInferCmd(deps, &rf),
		newValidateCmd(deps),
		newProbeCmd(&rf),
	)
	return root
}

// newLogger applies the command line over the pipeline's log section.
func newLogger(cmd *cobra.Command, lc config.Log, rf *rootFlags) logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Output = cmd.ErrOrStderr()
	cfg.Level = logger.LogLevel(lc.Level)
	cfg.JSON = lc.JSON
	if cmd.Flags().Changed("log-level") {
		cfg.Level = logger.LogLevel(rf.logLevel)
	}
	if cmd.Flags().Changed("log-json") {
		cfg.JSON = rf.logJSON
	}
	return logger.NewLogger(cfg)
}

// printIssues writes validation issues one per line and reports whether any
// is an error.
func printIssues(w io.Writer, issues []config.Issue) bool {
	for _, iss := range issues {
		fmt.Fprintln(w, iss.String())
	}
	return config.HasErrors(issues)
}
