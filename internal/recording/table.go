package recording

import (
	"fmt"
	"math"
	"sort"
)

// Table is a time-indexed matrix of channel samples. Data is channel-major:
// Data[c][i] is channel c at TimeStamps[i].
type Table struct {
	Name        string
	Columns     []string
	TimeStamps  []float64
	Data        [][]float64
	NominalRate float64
}

// Len returns the number of samples.
func (t *Table) Len() int {
	return len(t.TimeStamps)
}

// Width returns the number of channel columns.
func (t *Table) Width() int {
	return len(t.Columns)
}

// Column returns the samples of the named channel.
func (t *Table) Column(name string) ([]float64, bool) {
	for i, col := range t.Columns {
		if col == name {
			return t.Data[i], true
		}
	}
	return nil, false
}

// SampleRate is the reciprocal of the mean timestamp step. Tables with fewer
// than two samples fall back to the nominal rate.
func (t *Table) SampleRate() float64 {
	n := len(t.TimeStamps)
	if n < 2 {
		return t.NominalRate
	}
	span := t.TimeStamps[n-1] - t.TimeStamps[0]
	if span <= 0 {
		return t.NominalRate
	}
	return float64(n-1) / span
}

// Duration returns the span covered by the timestamps in seconds.
func (t *Table) Duration() float64 {
	n := len(t.TimeStamps)
	if n < 2 {
		return 0
	}
	return t.TimeStamps[n-1] - t.TimeStamps[0]
}

// Crop returns the samples with start <= timestamp <= end. Timestamps are
// assumed sorted; the returned table shares no memory with t.
func (t *Table) Crop(start, end float64) (*Table, error) {
	if end < start {
		return nil, fmt.Errorf("recording: crop end %.3f before start %.3f", end, start)
	}
	lo := sort.SearchFloat64s(t.TimeStamps, start)
	hi := sort.Search(len(t.TimeStamps), func(i int) bool { return t.TimeStamps[i] > end })
	out := &Table{
		Name:        t.Name,
		Columns:     append([]string(nil), t.Columns...),
		TimeStamps:  append([]float64(nil), t.TimeStamps[lo:hi]...),
		Data:        make([][]float64, len(t.Data)),
		NominalRate: t.NominalRate,
	}
	for c := range t.Data {
		out.Data[c] = append([]float64(nil), t.Data[c][lo:hi]...)
	}
	return out, nil
}

// CropSegment crops to a stimulus segment.
func (t *Table) CropSegment(seg Segment) (*Table, error) {
	return t.Crop(seg.Start, seg.End)
}

// Gaps returns the timestamp steps that exceed 1.5x the expected sample
// period, which is taken from the nominal rate when known.
func (t *Table) Gaps() []float64 {
	rate := t.NominalRate
	if rate <= 0 {
		rate = t.SampleRate()
	}
	if rate <= 0 {
		return nil
	}
	limit := 1.5 / rate
	var gaps []float64
	for i := 1; i < len(t.TimeStamps); i++ {
		if step := t.TimeStamps[i] - t.TimeStamps[i-1]; step > limit {
			gaps = append(gaps, step)
		}
	}
	return gaps
}

// MissingFraction returns the share of NaN values across all channels.
func (t *Table) MissingFraction() float64 {
	total, missing := 0, 0
	for _, col := range t.Data {
		for _, v := range col {
			total++
			if math.IsNaN(v) {
				missing++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(missing) / float64(total)
}
