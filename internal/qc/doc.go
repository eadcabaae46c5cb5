// Package qc merges the per-modality metrics of one recording into a single
// report record.
//
// Adapters run one at a time in registry order. Each returned key is
// prefixed with the modality namespace ("eeg_", "et_", ...), and the record
// always starts with the Subject and Collection Date columns. The first
// failing adapter aborts the whole record with an *AggregationError.
package qc
