package modality

import (
	"context"
	"math"
	"strings"
)

// Behavior summarises the stimulus marker stream.
type Behavior struct{}

// ComputeMetrics implements Adapter.
func (Behavior) ComputeMetrics(ctx context.Context, in Input) (*Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	segment, err := in.Segment()
	if err != nil {
		return nil, err
	}
	markers := in.Stim.Markers
	within := in.Stim.Within(segment)

	labels := make(map[string]bool, len(markers))
	for _, mk := range markers {
		labels[strings.ToLower(strings.TrimSpace(mk.Label))] = true
	}
	interval := math.NaN()
	if len(within) > 1 {
		interval = (within[len(within)-1].Time - within[0].Time) / float64(len(within)-1)
	}

	m := NewMetrics()
	m.Set("n_markers", len(markers))
	m.Set("n_unique_labels", len(labels))
	m.Set("task_duration_s", round(segment.Duration(), 3))
	m.Set("n_markers_in_task", len(within))
	m.Set("mean_marker_interval_s", round(interval, 3))
	m.Set("n_task_starts", in.Stim.Count(in.Task+"_start"))
	return m, nil
}
