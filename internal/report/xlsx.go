package report

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"mobiqc/internal/qc"
)

// SheetName is the worksheet the ledger is exported to.
const SheetName = "QC"

// ExportXLSX writes table to a workbook at path. Numeric cells are stored as
// numbers, everything else as text.
func ExportXLSX(table *Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if len(table.Header) > 0 {
		if err := f.SetSheetRow(SheetName, "A1", &table.Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		style, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(table.Header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
		if err := f.SetPanes(SheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			XSplit:      1,
			TopLeftCell: "B2",
			ActivePane:  "bottomRight",
		}); err != nil {
			return fmt.Errorf("freeze panes: %w", err)
		}
	}

	for i, row := range table.Rows {
		cells := make([]any, len(table.Header))
		for j, text := range table.Values(row) {
			switch table.Header[j] {
			case qc.ColumnSubject, qc.ColumnCollectionDate:
				cells[j] = text
			default:
				cells[j] = cellValue(text)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// cellValue converts finite numbers and leaves everything else as text.
func cellValue(text string) any {
	if text == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return text
}
