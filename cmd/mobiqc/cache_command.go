package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mobiqc/internal/eeg"
	"mobiqc/internal/logging"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cleaned EEG artifacts",
		Long: `Manage the cleaned EEG signals saved between runs.

Artifacts live in paths.cache_dir, or next to each recording when it is empty.
Pass a directory to inspect a recording folder directly.`,
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List cached artifacts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir(ctx, args)
			if err != nil {
				return err
			}
			artifacts, err := eeg.ListArtifacts(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(artifacts) == 0 {
				fmt.Fprintf(out, "No cached artifacts in %s\n", dir)
				return nil
			}

			rows := make([][]string, 0, len(artifacts))
			var total int64
			for _, a := range artifacts {
				total += a.Size
				percent, bads, version := "-", "-", "-"
				if a.Vars != nil {
					if a.Vars.PercentGood != nil {
						percent = fmt.Sprintf("%.1f", *a.Vars.PercentGood)
					}
					bads = fmt.Sprintf("%d", len(a.Vars.BadChannelsAfter))
					version = a.Vars.PipelineVersion
				}
				rows = append(rows, []string{
					a.Subject,
					humanize.Bytes(uint64(a.Size)),
					humanize.Time(a.ModTime),
					percent,
					bads,
					version,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Subject", "Size", "Cached", "% Good", "Bad After", "Version"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "%d artifact(s), %s\n", len(artifacts), humanize.Bytes(uint64(total)))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "clear [dir]",
		Short: "Remove cached artifacts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir(ctx, args)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			artifacts, err := eeg.ListArtifacts(dir)
			if err != nil {
				return err
			}
			subject = strings.TrimPrefix(strings.TrimSpace(subject), "sub-")

			var removed int
			var freed int64
			for _, a := range artifacts {
				if subject != "" && a.Subject != subject {
					continue
				}
				if err := a.Remove(); err != nil {
					return fmt.Errorf("remove %s: %w", a.SignalPath, err)
				}
				logger.Info("cached artifact removed",
					logging.String(logging.FieldEventType, "cache_removed"),
					logging.String(logging.FieldSubject, a.Subject),
					logging.String("path", a.SignalPath))
				removed++
				freed += a.Size
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d artifact(s), freed %s\n", removed, humanize.Bytes(uint64(freed)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Only remove artifacts of this subject")
	return cmd
}

func cacheDir(ctx *commandContext, args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}
	if cfg.Paths.CacheDir != "" {
		return cfg.Paths.CacheDir, nil
	}
	return "", fmt.Errorf("paths.cache_dir is empty; pass the recording directory")
}
