package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mobiqc/internal/report"
	"mobiqc/internal/services"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect and export the QC ledger",
	}

	reportCmd.AddCommand(newReportShowCommand(ctx))
	reportCmd.AddCommand(newReportCheckCommand(ctx))
	reportCmd.AddCommand(newReportExportCommand(ctx))
	return reportCmd
}

func newReportShowCommand(ctx *commandContext) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := readLedger(ctx)
			if err != nil {
				return err
			}
			rows := table.Rows
			if subject = strings.TrimSpace(subject); subject != "" {
				rows = table.Lookup(subject)
			}
			out := cmd.OutOrStdout()
			if len(table.Header) == 0 {
				fmt.Fprintln(out, "Report is empty")
				return nil
			}
			values := make([][]string, 0, len(rows))
			for _, row := range rows {
				values = append(values, table.Values(row))
			}
			if !isTerminal(out) {
				return writeCSV(out, table.Header, values)
			}
			aligns := make([]columnAlignment, len(table.Header))
			for i := 2; i < len(aligns); i++ {
				aligns[i] = alignRight
			}
			fmt.Fprintln(out, renderTable(table.Header, values, aligns))
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Only show rows of this subject")
	return cmd
}

func newReportCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <subject>",
		Short: "Show whether a subject is already in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := readLedger(ctx)
			if err != nil {
				return err
			}
			subject := strings.TrimPrefix(strings.TrimSpace(args[0]), "sub-")
			rows := table.Lookup(subject)
			if len(rows) == 0 {
				return &services.NotFoundError{What: "subject", Pattern: subject}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatusLine("sub-"+subject, statusInfo, report.StatusExists, shouldColorize(out)))
			for _, row := range rows {
				if isTerminal(out) {
					fmt.Fprintln(out, renderRecord(table.Header, table.Values(row)))
					continue
				}
				values := table.Values(row)
				for i, h := range table.Header {
					fmt.Fprintf(out, "%s%s: %s\n", statusIndent, h, values[i])
				}
			}
			return nil
		},
	}
}

func newReportExportCommand(ctx *commandContext) *cobra.Command {
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(xlsxPath)
			if target == "" {
				return fmt.Errorf("--xlsx is required")
			}
			table, err := readLedger(ctx)
			if err != nil {
				return err
			}
			if err := report.ExportXLSX(table, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d row(s) to %s\n", len(table.Rows), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Destination .xlsx file")
	return cmd
}

func readLedger(ctx *commandContext) (*report.Table, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return report.NewLedger(cfg.Paths.ReportPath).Read()
}

func writeCSV(out io.Writer, header []string, rows [][]string) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}
