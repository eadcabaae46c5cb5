// Package preflight provides readiness checks for the directories and
// external binaries mobiqc depends on.
//
// These checks run in two contexts:
//   - "mobiqc run" calls RunAll before touching any recording. If a required
//     check fails, the run stops before hours of EEG processing are wasted.
//   - "mobiqc doctor" prints every result, plus the tool versions reported by
//     ProbeTool.
//
// Disabled adapters are skipped.
package preflight
