package modality

import (
	"context"
	"math"

	"mobiqc/internal/recording"
)

// StreamAdapter reports the shared stream statistics of one XDF stream and
// whatever Measure adds.
type StreamAdapter struct {
	// Types are the stream types accepted, tried in order.
	Types   []string
	Measure func(table *recording.Table, m *Metrics)
}

// ComputeMetrics implements Adapter.
func (a StreamAdapter) ComputeMetrics(ctx context.Context, in Input) (*Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := in.Table(a.Types...)
	if err != nil {
		return nil, err
	}
	m := NewMetrics()
	StreamStats(table, m)
	if a.Measure != nil && table.Len() > 1 && table.Width() > 0 {
		a.Measure(table, m)
	}
	return m, nil
}

// StreamStats adds the measures every stream adapter reports: sample count,
// duration, nominal and effective rate, their ratio, missing and flat-line
// percentages, and timestamp gaps.
func StreamStats(table *recording.Table, m *Metrics) {
	effective := table.SampleRate()
	if table.Len() < 2 {
		effective = math.NaN()
	}
	ratio := math.NaN()
	if table.NominalRate > 0 {
		ratio = effective / table.NominalRate
	}
	gaps := table.Gaps()
	maxGap := 0.0
	for _, g := range gaps {
		maxGap = math.Max(maxGap, g)
	}

	m.Set("n_channels", table.Width())
	m.Set("n_samples", table.Len())
	m.Set("duration_s", round(table.Duration(), 3))
	m.Set("nominal_rate_hz", table.NominalRate)
	m.Set("effective_rate_hz", round(effective, 3))
	m.Set("rate_ratio", round(ratio, 4))
	m.Set("missing_pct", round(table.MissingFraction()*100, 3))
	m.Set("n_gaps", len(gaps))
	m.Set("max_gap_s", round(maxGap, 3))
	m.Set("flat_pct", round(flatFraction(table)*100, 3))
}

// flatFraction is the share of samples identical to their predecessor on
// every channel.
func flatFraction(table *recording.Table) float64 {
	n := table.Len()
	if n < 2 || table.Width() == 0 {
		return 0
	}
	flat := 0
	for i := 1; i < n; i++ {
		same := true
		for _, ch := range table.Data {
			if ch[i] != ch[i-1] {
				same = false
				break
			}
		}
		if same {
			flat++
		}
	}
	return float64(flat) / float64(n-1)
}

// fillMissing returns a copy of x with NaN samples replaced by the last
// finite value (the first finite value for a leading run).
func fillMissing(x []float64) []float64 {
	out := append([]float64(nil), x...)
	last := math.NaN()
	for _, v := range out {
		if !math.IsNaN(v) {
			last = v
			break
		}
	}
	if math.IsNaN(last) {
		last = 0
	}
	for i, v := range out {
		if math.IsNaN(v) {
			out[i] = last
			continue
		}
		last = v
	}
	return out
}
