package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mobiqc/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			path := ctx.configPath
			if path == "" {
				path = "(defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, path, colorize))
			fmt.Fprintln(out, renderStatusLine("Report", statusInfo, cfg.Paths.ReportPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Run history", statusInfo, cfg.RunLogPath(), colorize))

			results := preflight.RunAll(cmd.Context(), cfg)
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			probe := preflight.ProbeTool(cmd.Context(), cfg.FFprobeBinary())
			kind := statusOK
			if !probe.Detected {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("ffprobe version", kind, probe.VersionDetail(), colorize))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
