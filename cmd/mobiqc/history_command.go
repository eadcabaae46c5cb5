package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mobiqc/internal/runlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var subject string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent QC runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runlog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var runs []*runlog.Run
			if subject = strings.TrimPrefix(strings.TrimSpace(subject), "sub-"); subject != "" {
				runs, err = store.ForSubject(cmd.Context(), subject)
			} else {
				runs, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.Subject,
					string(run.Status),
					formatPercent(run.PercentGood),
					humanize.Time(run.StartedAt),
					formatElapsed(run.Elapsed()),
					run.Error,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Subject", "Status", "% Good", "Started", "Elapsed", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Only show runs of this subject")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatPercent(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(100 * time.Millisecond).String()
}
