package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mobiqc/internal/config"
	"mobiqc/internal/logging"
	"mobiqc/internal/modality"
	"mobiqc/internal/preflight"
	"mobiqc/internal/qc"
	"mobiqc/internal/recording"
	"mobiqc/internal/report"
	"mobiqc/internal/runlog"
	"mobiqc/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run <recording.xdf>...",
		Short: "Compute QC metrics and append them to the report",
		Long: `Compute QC metrics for each recording and append one row per subject to
the report ledger. Subjects already in the ledger are reported without
recomputation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if !skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
					for _, r := range failed {
						fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine(r.Name, statusError, r.Detail, colorize))
					}
					return fmt.Errorf("preflight: %d check(s) failed", len(failed))
				}
			}

			runs, err := runlog.Open(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()
			if n, err := runs.MarkInterrupted(cmd.Context()); err != nil {
				return err
			} else if n > 0 {
				logger.Warn("marked interrupted runs as failed",
					logging.String(logging.FieldEventType, "runlog_interrupted"),
					logging.Int64("runs", n))
			}

			generator, err := newGenerator(cfg, runs, logger)
			if err != nil {
				return err
			}

			var failures int
			for _, path := range args {
				outcome, err := generator.Generate(cmd.Context(), path)
				if err != nil {
					if ctxErr := cmd.Context().Err(); ctxErr != nil {
						return ctxErr
					}
					failures++
					printFailure(cmd.ErrOrStderr(), path, err, colorize)
					continue
				}
				printOutcome(out, outcome, colorize)
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d recording(s) failed", failures, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and dependency checks")
	return cmd
}

func newGenerator(cfg *config.Config, runs *runlog.Store, logger *slog.Logger) (*report.Generator, error) {
	entries, err := modality.NewRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &report.Generator{
		Ledger:    report.NewLedger(cfg.Paths.ReportPath),
		Collector: qc.NewAggregator(entries, cfg.Study.Task, logger),
		Runs:      runs,
		Logger:    logger,
	}, nil
}

func printOutcome(out io.Writer, outcome report.Outcome, colorize bool) {
	kind := statusOK
	if outcome.Status == report.StatusExists {
		kind = statusInfo
	}
	fmt.Fprintln(out, renderStatusLine("sub-"+outcome.Subject, kind, outcome.Status, colorize))
	for _, row := range outcome.Rows {
		headers := make([]string, 0, row.Len())
		values := make([]string, 0, row.Len())
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			headers = append(headers, pair.Key)
			values = append(values, pair.Value)
		}
		if isTerminal(out) {
			fmt.Fprintln(out, renderRecord(headers, values))
			continue
		}
		for i := range headers {
			fmt.Fprintf(out, "%s%s: %s\n", statusIndent, headers[i], values[i])
		}
	}
}

func printFailure(out io.Writer, path string, err error, colorize bool) {
	label := path
	if subject, perr := recording.ParseSubjectID(path); perr == nil {
		label = "sub-" + subject
	}
	kind, message := statusError, err.Error()
	if services.NeedsReview(err) {
		kind, message = statusWarn, "needs review: "+message
	}
	fmt.Fprintln(out, renderStatusLine(label, kind, message, colorize))
	printHint(out, err)
}

func printHint(out io.Writer, err error) {
	if hint := services.Hint(err); hint != "" {
		fmt.Fprintf(out, "%shint: %s\n", statusIndent, strings.TrimSpace(hint))
	}
}
