// Package recording exposes one XDF session as the tables the QC stages work
// on: the subject identifier parsed from the path, the collection date from
// the file header, numeric signal tables per stream type, and the stimulus
// marker table used to crop task segments.
package recording
