// Package xdf reads and writes Extensible Data Format (XDF 1.0) containers,
// the multi-stream session files produced by Lab Streaming Layer recorders.
//
// This package has no mobiqc-specific dependencies. Read decodes every chunk
// type (file header, stream headers and footers, samples, clock offsets and
// boundaries), converts numeric channels to float64 in channel-major order,
// fills in omitted timestamps from the nominal rate, and optionally applies
// clock-offset synchronization. Writer produces files Read accepts and is used
// to build fixtures and converted recordings.
package xdf
