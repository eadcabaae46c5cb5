package modality

import (
	"math"
	"strings"

	"mobiqc/internal/dsp"
	"mobiqc/internal/recording"
)

// Stream types accepted per modality, tried in order.
var (
	EyeTrackingTypes = []string{"Gaze", "ET", "EyeTracking"}
	ECGTypes         = []string{"ECG", "EXG"}
	EDATypes         = []string{"EDA", "GSR"}
	RSPTypes         = []string{"RSP", "Respiration", "RESP"}
	MicTypes         = []string{"Audio", "Microphone", "MIC"}
)

// NewEyeTracking reports gaze validity and pupil size.
func NewEyeTracking() StreamAdapter {
	return StreamAdapter{Types: EyeTrackingTypes, Measure: gazeMetrics}
}

// NewECG reports heart rate and beat-to-beat variability from R peaks.
func NewECG() StreamAdapter {
	return StreamAdapter{Types: ECGTypes, Measure: heartMetrics}
}

// NewEDA reports the tonic skin conductance level and phasic responses.
func NewEDA() StreamAdapter {
	return StreamAdapter{Types: EDATypes, Measure: edaMetrics}
}

// NewRSP reports the breathing rate from the respiration belt.
func NewRSP() StreamAdapter {
	return StreamAdapter{Types: RSPTypes, Measure: breathingMetrics}
}

// NewMic reports loudness, clipping and silence of the microphone.
func NewMic() StreamAdapter {
	return StreamAdapter{Types: MicTypes, Measure: audioMetrics}
}

// gazeMetrics treats a sample as lost when any channel is NaN or every
// channel is zero, which is how trackers report a lost eye.
func gazeMetrics(t *recording.Table, m *Metrics) {
	n := t.Len()
	lost := make([]bool, n)
	for i := 0; i < n; i++ {
		zero := true
		for _, ch := range t.Data {
			v := ch[i]
			if math.IsNaN(v) {
				lost[i] = true
				break
			}
			if v != 0 {
				zero = false
			}
		}
		if zero {
			lost[i] = true
		}
	}
	runs := dsp.Intervals(lost)
	bad, longest := 0, 0
	for _, r := range runs {
		length := r[1] - r[0]
		bad += length
		longest = max(longest, length)
	}
	m.Set("valid_pct", round((1-float64(bad)/float64(n))*100, 3))
	m.Set("n_dropouts", len(runs))
	m.Set("longest_dropout_s", round(float64(longest)/t.SampleRate(), 3))

	var pupil []float64
	for c, name := range t.Columns {
		if !strings.Contains(strings.ToLower(name), "pupil") {
			continue
		}
		for i, v := range t.Data[c] {
			if !lost[i] && v > 0 {
				pupil = append(pupil, v)
			}
		}
	}
	if len(pupil) > 0 {
		s := dsp.Summarize(pupil)
		m.Set("pupil_mean", round(s.Mean, 4))
		m.Set("pupil_std", round(s.Std, 4))
	}
}

// heartMetrics detects R peaks on the 5-15 Hz band of the first channel.
func heartMetrics(t *recording.Table, m *Metrics) {
	fs := t.SampleRate()
	x := fillMissing(t.Data[0])
	if high := math.Min(15, 0.45*fs); high > 5 {
		if bp, err := dsp.Bandpass(5, high, fs, 2); err == nil {
			x = bp.FiltFilt(x)
		}
	}
	lo, hi := extent(x)
	if math.Abs(lo) > math.Abs(hi) {
		for i := range x {
			x[i] = -x[i]
		}
		hi = -lo
	}

	var beats []int
	if hi > 0 {
		beats = dsp.FindPeaks(x, 0.4*hi, int(0.3*fs))
	}
	rr := make([]float64, 0, len(beats))
	for i := 1; i < len(beats); i++ {
		rr = append(rr, float64(beats[i]-beats[i-1])/fs*1000)
	}
	hr := math.NaN()
	if len(rr) > 0 {
		hr = 60000 / dsp.Median(rr)
	}
	m.Set("n_beats", len(beats))
	m.Set("heart_rate_bpm", round(hr, 2))
	m.Set("sdnn_ms", round(dsp.Summarize(rr).Std, 2))
	m.Set("rmssd_ms", round(dsp.RMS(dsp.Diff(rr)), 2))
	m.Set("hr_plausible", !math.IsNaN(hr) && hr >= 40 && hr <= 180)
}

// edaMetrics splits the conductance into a slow tonic level and a phasic
// remainder whose peaks above 0.01 µS count as skin conductance responses.
func edaMetrics(t *recording.Table, m *Metrics) {
	fs := t.SampleRate()
	raw := t.Data[0]
	summary := dsp.Summarize(raw)
	negative := 0
	for _, v := range raw {
		if v < 0 {
			negative++
		}
	}

	x := fillMissing(raw)
	if lp, err := dsp.Lowpass(1, fs, 2); err == nil {
		x = lp.FiltFilt(x)
	}
	tonic := x
	if lp, err := dsp.Lowpass(0.05, fs, 2); err == nil {
		tonic = lp.FiltFilt(x)
	}
	phasic := make([]float64, len(x))
	for i := range x {
		phasic[i] = x[i] - tonic[i]
	}
	responses := dsp.FindPeaks(phasic, 0.01, int(math.Max(fs, 1)))
	perMinute := math.NaN()
	if minutes := t.Duration() / 60; minutes > 0 {
		perMinute = float64(len(responses)) / minutes
	}

	m.Set("tonic_mean", round(summary.Mean, 4))
	m.Set("tonic_std", round(summary.Std, 4))
	m.Set("range", round(summary.Max-summary.Min, 4))
	m.Set("n_scr", len(responses))
	m.Set("scr_per_min", round(perMinute, 3))
	m.Set("negative_pct", round(float64(negative)/float64(len(raw))*100, 3))
}

// breathingMetrics takes the breathing rate from the spectral peak between
// 0.1 and 1 Hz (6-60 breaths per minute).
func breathingMetrics(t *recording.Table, m *Metrics) {
	fs := t.SampleRate()
	x := fillMissing(t.Data[0])
	segment := int(math.Min(float64(len(x)), 60*fs))
	freqs, psd := dsp.Welch(x, fs, segment)
	peak := dsp.PeakFrequency(freqs, psd, 0.1, 1)
	band := dsp.BandPower(freqs, psd, 0.1, 1)
	total := dsp.BandPower(freqs, psd, 0.05, math.Inf(1))
	ratio := math.NaN()
	if total > 0 {
		ratio = band / total
	}
	m.Set("breathing_rate_bpm", round(peak*60, 2))
	m.Set("band_power_ratio", round(ratio, 4))
	m.Set("amplitude", round(dsp.RobustStd(x), 4))
}

// audioMetrics reports clipping as runs of at least three samples within 1 %
// of the peak, and silence as 50 ms windows quieter than a tenth of the
// overall RMS.
func audioMetrics(t *recording.Table, m *Metrics) {
	x := t.Data[0]
	rms := dsp.RMS(x)
	peak := 0.0
	for _, v := range x {
		if !math.IsNaN(v) {
			peak = math.Max(peak, math.Abs(v))
		}
	}

	clipped := 0
	if peak > 0 {
		near := make([]bool, len(x))
		for i, v := range x {
			near[i] = math.Abs(v) >= 0.99*peak
		}
		for _, r := range dsp.Intervals(near) {
			if r[1]-r[0] >= 3 {
				clipped += r[1] - r[0]
			}
		}
	}

	width := max(int(0.05*t.SampleRate()), 1)
	windows, quiet := 0, 0
	for start := 0; start+width <= len(x); start += width {
		windows++
		if dsp.RMS(x[start:start+width]) < 0.1*rms {
			quiet++
		}
	}
	silence := 0.0
	if windows > 0 {
		silence = float64(quiet) / float64(windows)
	}
	crest := math.NaN()
	if rms > 0 {
		crest = peak / rms
	}

	m.Set("rms", round(rms, 6))
	m.Set("peak_amplitude", round(peak, 6))
	m.Set("crest_factor", round(crest, 3))
	m.Set("clipping_pct", round(float64(clipped)/float64(len(x))*100, 3))
	m.Set("silence_pct", round(silence*100, 3))
}

func extent(x []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
