package modality

import (
	"context"
	"fmt"
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"mobiqc/internal/recording"
)

// Metrics is a flat, insertion-ordered mapping from metric name to scalar
// (int, int64, float64, string or bool).
type Metrics = orderedmap.OrderedMap[string, any]

// NewMetrics returns an empty Metrics.
func NewMetrics() *Metrics {
	return orderedmap.New[string, any]()
}

// Input is everything an adapter may need for one recording.
type Input struct {
	Path      string
	SubjectID string
	Task      string
	// Session is the opened recording. Adapters that do not read streams
	// tolerate nil.
	Session *recording.Session
	Stim    recording.StimTable
}

// Segment returns the task interval of the recording.
func (in Input) Segment() (recording.Segment, error) {
	return in.Stim.Segment(in.Task)
}

// Table returns the stream matching types cropped to the task segment.
func (in Input) Table(types ...string) (*recording.Table, error) {
	if in.Session == nil {
		return nil, fmt.Errorf("modality: recording %s is not open", in.Path)
	}
	table, err := in.Session.Table(types...)
	if err != nil {
		return nil, err
	}
	segment, err := in.Segment()
	if err != nil {
		return nil, err
	}
	return table.CropSegment(segment)
}

// Adapter computes the QC metrics of one modality. Returned keys carry no
// namespace; the aggregator adds it.
type Adapter interface {
	ComputeMetrics(ctx context.Context, in Input) (*Metrics, error)
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(ctx context.Context, in Input) (*Metrics, error)

// ComputeMetrics implements Adapter.
func (f AdapterFunc) ComputeMetrics(ctx context.Context, in Input) (*Metrics, error) {
	return f(ctx, in)
}

// round keeps report cells readable; NaN and Inf pass through.
func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
