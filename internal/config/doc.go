// Package config loads, normalizes, and validates mobiqc configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MOBIQC_DATA_DIR and MOBIQC_REPORT_PATH. The Config type centralizes every
// knob the QC pipeline and CLI need, so the data directory, the shared report
// ledger, artifact caches, and external adapter commands are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
