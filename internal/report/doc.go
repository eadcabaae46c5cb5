// Package report maintains the QC ledger, a CSV file with one row per
// subject, and exports it as a spreadsheet.
//
// Generator is the entry point for a recording: it skips subjects that are
// already in the ledger, otherwise aggregates the modality metrics and
// appends the row. The existence check is repeated under an exclusive file
// lock next to the ledger so concurrent runs never write the same subject
// twice.
package report
