package eeg

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"mobiqc/internal/dsp"
)

// flatThreshold is the amplitude below which a channel counts as flat.
const flatThreshold = 1e-15

// NoisyOptions tunes noisy-channel detection.
type NoisyOptions struct {
	DeviationThreshold   float64
	HFNoiseThreshold     float64
	CorrelationThreshold float64
	BadTimeThreshold     float64
	CorrelationWindow    float64
}

// DefaultNoisyOptions mirrors the thresholds of the PREP pipeline.
func DefaultNoisyOptions() NoisyOptions {
	return NoisyOptions{
		DeviationThreshold:   5,
		HFNoiseThreshold:     5,
		CorrelationThreshold: 0.4,
		BadTimeThreshold:     0.01,
		CorrelationWindow:    1,
	}
}

// Noisy lists channels flagged by each criterion.
type Noisy struct {
	ByNaN         []string
	ByFlat        []string
	ByDeviation   []string
	ByHFNoise     []string
	ByCorrelation []string
}

// Unusable returns channels that cannot take part in any reference, NaN
// channels first, then flat ones.
func (n Noisy) Unusable() []string {
	return union(n.ByNaN, n.ByFlat)
}

// All returns every flagged channel, ordered as in channels.
func (n Noisy) All(channels []string) []string {
	flagged := union(n.ByNaN, n.ByFlat, n.ByDeviation, n.ByHFNoise, n.ByCorrelation)
	return orderLike(channels, flagged)
}

// FindNoisy flags channels that are NaN, flat, of deviant amplitude, dominated
// by high-frequency noise, or poorly correlated with every other channel.
func FindNoisy(raw *Raw, opts NoisyOptions) Noisy {
	var out Noisy
	usable := make([]int, 0, len(raw.Channels))
	for i, ch := range raw.Data {
		switch {
		case hasNaN(ch):
			out.ByNaN = append(out.ByNaN, raw.Channels[i])
		case dsp.MAD(ch) < flatThreshold || stdDev(ch) < flatThreshold:
			out.ByFlat = append(out.ByFlat, raw.Channels[i])
		default:
			usable = append(usable, i)
		}
	}
	if len(usable) < 2 {
		return out
	}

	amplitudes := make([]float64, len(usable))
	for k, idx := range usable {
		amplitudes[k] = dsp.RobustStd(raw.Data[idx])
	}
	for k, z := range robustScores(amplitudes) {
		if math.IsNaN(z) || z > opts.DeviationThreshold {
			out.ByDeviation = append(out.ByDeviation, raw.Channels[usable[k]])
		}
	}

	smoothed := raw.Data
	if raw.SFreq > 100 {
		if lp, err := dsp.Lowpass(50, raw.SFreq, 4); err == nil {
			smoothed = make([][]float64, len(raw.Data))
			noisiness := make([]float64, len(usable))
			for k, idx := range usable {
				low := lp.FiltFilt(raw.Data[idx])
				smoothed[idx] = low
				high := make([]float64, len(low))
				for i := range low {
					high[i] = raw.Data[idx][i] - low[i]
				}
				denom := dsp.MAD(low)
				if denom == 0 {
					noisiness[k] = math.Inf(1)
					continue
				}
				noisiness[k] = dsp.MAD(high) / denom
			}
			for k, z := range robustScores(noisiness) {
				if math.IsNaN(z) || z > opts.HFNoiseThreshold {
					out.ByHFNoise = append(out.ByHFNoise, raw.Channels[usable[k]])
				}
			}
		}
	}

	out.ByCorrelation = lowCorrelation(raw, smoothed, usable, opts)
	return out
}

func lowCorrelation(raw *Raw, data [][]float64, usable []int, opts NoisyOptions) []string {
	width := int(opts.CorrelationWindow * raw.SFreq)
	if width < 2 {
		return nil
	}
	windows := raw.NTimes() / width
	if windows == 0 {
		return nil
	}
	badWindows := make([]int, len(usable))
	norm := make([][]float64, len(usable))
	valid := make([]bool, len(usable))
	for w := 0; w < windows; w++ {
		start := w * width
		for k, idx := range usable {
			norm[k], valid[k] = normalizeWindow(data[idx][start:start+width], norm[k])
		}
		for k := range usable {
			if !valid[k] {
				continue
			}
			best := 0.0
			for j := range usable {
				if j == k || !valid[j] {
					continue
				}
				if c := math.Abs(dot(norm[k], norm[j])); c > best {
					best = c
				}
			}
			if best < opts.CorrelationThreshold {
				badWindows[k]++
			}
		}
	}
	var out []string
	for k, count := range badWindows {
		if float64(count)/float64(windows) > opts.BadTimeThreshold {
			out = append(out, raw.Channels[usable[k]])
		}
	}
	return out
}

// normalizeWindow centres x and scales it to unit norm, reusing buf.
func normalizeWindow(x, buf []float64) ([]float64, bool) {
	if cap(buf) < len(x) {
		buf = make([]float64, len(x))
	}
	buf = buf[:len(x)]
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	ss := 0.0
	for i, v := range x {
		buf[i] = v - mean
		ss += buf[i] * buf[i]
	}
	if ss == 0 {
		return buf, false
	}
	inv := 1 / math.Sqrt(ss)
	for i := range buf {
		buf[i] *= inv
	}
	return buf, true
}

func robustScores(values []float64) []float64 {
	med := dsp.Median(values)
	spread := dsp.RobustStd(values)
	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsInf(v, 1):
			out[i] = math.Inf(1)
		case spread == 0 || math.IsNaN(spread):
			out[i] = 0
		default:
			out[i] = (v - med) / spread
		}
	}
	return out
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func stdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func union(groups ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range groups {
		for _, v := range g {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func orderLike(order, names []string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]string, 0, len(names))
	for _, ch := range order {
		if want[ch] {
			out = append(out, ch)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
