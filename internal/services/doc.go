// Package services defines shared error markers and file resolution helpers
// consumed by the EEG pipeline, the modality adapters, and the report writer.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent run statuses (failed vs review).
//   - Typed resolution errors (NotFoundError, AmbiguousMatchError) for sibling
//     files that must match exactly once.
//   - ResolveOne, which turns a glob into exactly one path or one of those
//     errors.
//
// Use these helpers when wiring new adapters so failure classification stays
// uniform across the run log and the CLI.
package services
