package recording

import (
	"fmt"
	"os"
	"strings"
	"time"

	"mobiqc/internal/services"
	"mobiqc/internal/xdf"
)

// MarkerStreamType is the LSL stream type carrying stimulus events.
const MarkerStreamType = "Markers"

// DateLayout is the collection date format written to the report.
const DateLayout = "2006-01-02"

// Session is one opened recording.
type Session struct {
	Path      string
	SubjectID string
	file      *xdf.File
	modTime   time.Time
}

// Open parses the subject ID from path and decodes the XDF container.
func Open(path string) (*Session, error) {
	subject, err := ParseSubjectID(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("recording: stat %s: %w", path, err)
	}
	file, err := xdf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}
	return &Session{Path: path, SubjectID: subject, file: file, modTime: info.ModTime()}, nil
}

// NewSession wraps an already decoded file.
func NewSession(path, subject string, file *xdf.File) *Session {
	return &Session{Path: path, SubjectID: subject, file: file}
}

// File exposes the decoded container.
func (s *Session) File() *xdf.File {
	return s.file
}

// CollectionDate returns the recording date as YYYY-MM-DD. The XDF header is
// authoritative; when it is missing or unparseable the file modification
// time is used and fromHeader is false.
func (s *Session) CollectionDate() (date string, fromHeader bool) {
	if when, err := s.file.Header.Time(); err == nil {
		return when.Format(DateLayout), true
	}
	if s.modTime.IsZero() {
		return "", false
	}
	return s.modTime.Format(DateLayout), false
}

// Stream returns the single stream whose type matches one of types, tried in
// order.
func (s *Session) Stream(types ...string) (*xdf.Stream, error) {
	for _, streamType := range types {
		matches := s.file.StreamsByType(streamType)
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			names := make([]string, 0, len(matches))
			for _, m := range matches {
				names = append(names, m.Info.Name)
			}
			return nil, &services.AmbiguousMatchError{What: "stream", Pattern: "type=" + streamType, Matches: names}
		}
	}
	return nil, &services.NotFoundError{What: "stream", Pattern: "type=" + strings.Join(types, "|")}
}

// Table returns the numeric stream matching types as a Table.
func (s *Session) Table(types ...string) (*Table, error) {
	stream, err := s.Stream(types...)
	if err != nil {
		return nil, err
	}
	return TableFromStream(stream)
}

// TableFromStream converts a numeric stream. Samples are copied.
func TableFromStream(stream *xdf.Stream) (*Table, error) {
	if stream.Info.IsString() {
		return nil, fmt.Errorf("recording: stream %q carries strings", stream.Info.Name)
	}
	table := &Table{
		Name:        stream.Info.Name,
		Columns:     stream.Info.Labels(),
		TimeStamps:  append([]float64(nil), stream.TimeStamps...),
		Data:        make([][]float64, len(stream.Data)),
		NominalRate: stream.Info.NominalSRate,
	}
	for c := range stream.Data {
		table.Data[c] = append([]float64(nil), stream.Data[c]...)
	}
	return table, nil
}

// Stim merges every string stream of type Markers into one table, using the
// first channel as the label.
func (s *Session) Stim() (StimTable, error) {
	streams := s.file.StreamsByType(MarkerStreamType)
	var markers []Marker
	for _, stream := range streams {
		if !stream.Info.IsString() {
			continue
		}
		for i, row := range stream.Strings {
			if len(row) == 0 {
				continue
			}
			markers = append(markers, Marker{Time: stream.TimeStamps[i], Label: row[0]})
		}
	}
	if len(markers) == 0 {
		return StimTable{}, &services.NotFoundError{What: "stimulus markers", Pattern: "type=" + MarkerStreamType}
	}
	return NewStimTable(markers), nil
}

// Segment returns the task interval from the session's marker stream.
func (s *Session) Segment(task string) (Segment, error) {
	stim, err := s.Stim()
	if err != nil {
		return Segment{}, err
	}
	return stim.Segment(task)
}
