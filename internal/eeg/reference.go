package eeg

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"mobiqc/internal/dsp"
	"mobiqc/internal/logging"
)

// Referencer re-references raw and reports which channels it found bad.
type Referencer interface {
	Reference(ctx context.Context, raw *Raw) (*Referenced, error)
}

// Referenced is the outcome of robust referencing.
type Referenced struct {
	Raw          *Raw
	BadBefore    []string
	Interpolated []string
	BadAfter     []string
}

// RobustReference removes line noise, estimates a reference from the median
// of usable channels while iteratively interpolating noisy ones, then
// re-references, interpolates the channels still noisy and re-checks them.
type RobustReference struct {
	// LineFreq is the mains frequency; every harmonic below Nyquist is
	// notched before detection.
	LineFreq      float64
	NotchQ        float64
	MaxIterations int
	Noisy         NoisyOptions
	Logger        *slog.Logger
}

// LineHarmonics lists multiples of base strictly below the Nyquist frequency.
func LineHarmonics(base, sfreq float64) []float64 {
	if base <= 0 {
		return nil
	}
	var out []float64
	for f := base; f < sfreq/2; f += base {
		out = append(out, f)
	}
	return out
}

// Reference implements Referencer. raw is not modified.
func (r *RobustReference) Reference(ctx context.Context, raw *Raw) (*Referenced, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := r.Noisy
	if opts == (NoisyOptions{}) {
		opts = DefaultNoisyOptions()
	}
	maxIter := r.MaxIterations
	if maxIter <= 0 {
		maxIter = 4
	}
	q := r.NotchQ
	if q <= 0 {
		q = 30
	}

	work := raw.Clone()
	for _, freq := range LineHarmonics(r.LineFreq, work.SFreq) {
		notch, err := dsp.Notch(freq, work.SFreq, q)
		if err != nil {
			return nil, fmt.Errorf("eeg: line noise filter: %w", err)
		}
		if err := applyFilter(ctx, work, notch); err != nil {
			return nil, err
		}
	}

	detect := func(sig *Raw) (Noisy, error) {
		if err := ctx.Err(); err != nil {
			return Noisy{}, err
		}
		return FindNoisy(detrended(sig), opts), nil
	}

	original, err := detect(work)
	if err != nil {
		return nil, err
	}
	badBefore := original.All(work.Channels)
	logger.Info("noisy channels before referencing",
		logging.Strings("channels", badBefore),
		logging.Int("count", len(badBefore)))

	reference, err := r.estimateReference(ctx, work, original, maxIter, detect)
	if err != nil {
		return nil, err
	}

	signal := work
	subtract(signal, reference)

	noisy, err := detect(signal)
	if err != nil {
		return nil, err
	}
	interpolated := noisy.All(signal.Channels)
	InterpolateBads(signal, interpolated)
	subtract(signal, channelMean(signal, nil))

	still, err := detect(signal)
	if err != nil {
		return nil, err
	}
	badAfter := still.All(signal.Channels)
	logger.Info("robust reference complete",
		logging.Strings("interpolated", interpolated),
		logging.Strings("still_bad", badAfter))

	return &Referenced{
		Raw:          signal,
		BadBefore:    nonNil(badBefore),
		Interpolated: nonNil(interpolated),
		BadAfter:     nonNil(badAfter),
	}, nil
}

func (r *RobustReference) estimateReference(ctx context.Context, work *Raw, original Noisy, maxIter int, detect func(*Raw) (Noisy, error)) ([]float64, error) {
	unusable := original.Unusable()
	usable := work.Exclude(unusable)
	if len(usable) == 0 {
		return nil, fmt.Errorf("eeg: every channel is flat or NaN")
	}
	reference := channelMedian(work, usable)

	var bad, last []string
	for iteration := 1; ; iteration++ {
		tmp := work.Clone()
		subtract(tmp, reference)
		noisy, err := detect(tmp)
		if err != nil {
			return nil, err
		}
		bad = union(bad, noisy.All(tmp.Channels), unusable)
		if (iteration > 1 && (len(bad) == 0 || sameSet(bad, last))) || iteration > maxIter {
			break
		}
		last = append([]string(nil), bad...)

		tmp = work.Clone()
		InterpolateBads(tmp, bad)
		reference = channelMean(tmp, nil)
	}
	return reference, nil
}

// detrended returns a 1 Hz high-passed copy used only for detection.
func detrended(raw *Raw) *Raw {
	hp, err := dsp.Highpass(1, raw.SFreq, 2)
	if err != nil {
		return raw
	}
	out := &Raw{Channels: raw.Channels, SFreq: raw.SFreq, Montage: raw.Montage, Data: make([][]float64, len(raw.Data))}
	for i, ch := range raw.Data {
		if hasNaN(ch) {
			out.Data[i] = ch
			continue
		}
		out.Data[i] = hp.FiltFilt(ch)
	}
	return out
}

func applyFilter(ctx context.Context, raw *Raw, filter dsp.Cascade) error {
	for i, ch := range raw.Data {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw.Data[i] = filter.FiltFilt(ch)
	}
	return nil
}

func channelMedian(raw *Raw, idxs []int) []float64 {
	out := make([]float64, raw.NTimes())
	column := make([]float64, len(idxs))
	for t := range out {
		for k, idx := range idxs {
			column[k] = raw.Data[idx][t]
		}
		sort.Float64s(column)
		n := len(column)
		if n%2 == 1 {
			out[t] = column[n/2]
		} else {
			out[t] = (column[n/2-1] + column[n/2]) / 2
		}
	}
	return out
}

// channelMean averages the given channels, or every channel when idxs is nil.
func channelMean(raw *Raw, idxs []int) []float64 {
	if idxs == nil {
		idxs = make([]int, len(raw.Channels))
		for i := range idxs {
			idxs[i] = i
		}
	}
	out := make([]float64, raw.NTimes())
	if len(idxs) == 0 {
		return out
	}
	for _, idx := range idxs {
		for t, v := range raw.Data[idx] {
			out[t] += v
		}
	}
	inv := 1 / float64(len(idxs))
	for t := range out {
		out[t] *= inv
	}
	return out
}

func subtract(raw *Raw, reference []float64) {
	for _, ch := range raw.Data {
		for t := range ch {
			ch[t] -= reference[t]
		}
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
