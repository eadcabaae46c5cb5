// Package runlog records every report invocation in a SQLite database under
// the state directory.
//
// A run is opened as StatusRunning before any QC work starts and closed as
// saved, exists or failed. Runs left in StatusRunning by a crashed process
// can be swept with MarkInterrupted. The schema is applied from embedded
// migrations on Open.
package runlog
