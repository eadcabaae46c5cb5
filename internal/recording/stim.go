package recording

import (
	"fmt"
	"sort"
	"strings"

	"mobiqc/internal/services"
)

// Marker is one stimulus event.
type Marker struct {
	Time  float64
	Label string
}

// StimTable holds stimulus markers in time order.
type StimTable struct {
	Markers []Marker
}

// NewStimTable sorts markers by time.
func NewStimTable(markers []Marker) StimTable {
	sorted := append([]Marker(nil), markers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return StimTable{Markers: sorted}
}

// Segment is a task interval on the recorder clock.
type Segment struct {
	Task  string
	Start float64
	End   float64
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Segment locates the first "<task>_start" marker and the first
// "<task>_end" marker after it. Labels compare case-insensitively.
func (s StimTable) Segment(task string) (Segment, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return Segment{}, fmt.Errorf("recording: empty task label")
	}
	startLabel := task + "_start"
	endLabel := task + "_end"

	startIdx := -1
	for i, m := range s.Markers {
		if strings.EqualFold(strings.TrimSpace(m.Label), startLabel) {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return Segment{}, &services.NotFoundError{What: "stimulus marker", Pattern: startLabel}
	}
	for _, m := range s.Markers[startIdx+1:] {
		if strings.EqualFold(strings.TrimSpace(m.Label), endLabel) {
			return Segment{Task: task, Start: s.Markers[startIdx].Time, End: m.Time}, nil
		}
	}
	return Segment{}, &services.NotFoundError{What: "stimulus marker", Pattern: endLabel}
}

// Count returns how many markers carry the given label.
func (s StimTable) Count(label string) int {
	n := 0
	for _, m := range s.Markers {
		if strings.EqualFold(strings.TrimSpace(m.Label), label) {
			n++
		}
	}
	return n
}

// Within returns the markers inside the segment, bounds included.
func (s StimTable) Within(seg Segment) []Marker {
	var out []Marker
	for _, m := range s.Markers {
		if m.Time >= seg.Start && m.Time <= seg.End {
			out = append(out, m)
		}
	}
	return out
}
