// Package main hosts the mobiqc CLI entrypoint and command graph.
//
// The Cobra-based command tree runs QC on recordings, inspects and exports
// the ledger, manages the cleaned EEG cache, shows the run history, and
// scaffolds configuration. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on output.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
