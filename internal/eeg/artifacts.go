package eeg

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"mobiqc/internal/dsp"
	"mobiqc/internal/logging"
)

// Detector annotates artifact intervals in raw.
type Detector interface {
	Detect(ctx context.Context, raw *Raw) ([]Annotation, error)
}

// BlinkDetector finds blinks as large low-frequency deflections on frontal
// channels, the way EOG events are found when no EOG channel was recorded.
type BlinkDetector struct {
	Channels []string
	// Window is the annotation length centred on each blink peak.
	Window float64
	Low    float64
	High   float64
}

// Detect implements Detector.
func (d BlinkDetector) Detect(ctx context.Context, raw *Raw) ([]Annotation, error) {
	if len(d.Channels) == 0 {
		return nil, fmt.Errorf("eeg: no blink channels configured")
	}
	low, high := d.Low, d.High
	if low <= 0 {
		low = 1
	}
	if high <= 0 {
		high = 10
	}
	if high >= raw.Nyquist() {
		high = raw.Nyquist() * 0.9
	}
	band, err := dsp.Bandpass(low, high, raw.SFreq, 4)
	if err != nil {
		return nil, fmt.Errorf("eeg: blink filter: %w", err)
	}

	var best []float64
	bestEnergy := -1.0
	for _, name := range d.Channels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := raw.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("eeg: blink channel %s not in recording", name)
		}
		filtered := band.FiltFilt(raw.Data[idx])
		energy := 0.0
		for _, v := range filtered {
			energy += v * v
		}
		if energy > bestEnergy {
			best, bestEnergy = filtered, energy
		}
	}
	if bestEnergy <= 0 {
		return nil, nil
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, v := range best {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	if math.Abs(minV) > math.Abs(maxV) {
		for i := range best {
			best[i] = -best[i]
		}
		minV, maxV = -maxV, -minV
	}
	threshold := (maxV - minV) / 4
	spacing := int(math.Max(d.Window, 0.3) * raw.SFreq)

	peaks := dsp.FindPeaks(best, threshold, spacing)
	out := make([]Annotation, 0, len(peaks))
	// Each blink marks a Window-long interval centred on its peak rather than
	// a zero-length event, so blinks count toward the bad-sample mask. The
	// onset may precede the first sample; BadMask clips it.
	for _, p := range peaks {
		out = append(out, Annotation{
			Onset:       float64(p)/raw.SFreq - d.Window/2,
			Duration:    d.Window,
			Description: LabelBlink,
		})
	}
	return out, nil
}

// MuscleDetector flags intervals where the z-scored high-frequency envelope,
// summed over channels, exceeds Threshold. Good stretches shorter than
// MinLengthGood between two flagged intervals are absorbed into them.
type MuscleDetector struct {
	Threshold     float64
	MinLengthGood float64
	Low           float64
	High          float64
	Logger        *slog.Logger
}

// Detect implements Detector.
func (d MuscleDetector) Detect(ctx context.Context, raw *Raw) ([]Annotation, error) {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if d.High >= raw.Nyquist() {
		logging.WarnWithContext(ctx, logger, "muscle band above nyquist; muscle detection skipped",
			"eeg_muscle_skipped",
			logging.Float64("band_high", d.High),
			logging.Float64("nyquist", raw.Nyquist()),
			logging.String(logging.FieldErrorHint, "record at a higher rate or lower eeg.muscle_band"),
		)
		return nil, nil
	}
	band, err := dsp.Bandpass(d.Low, d.High, raw.SFreq, 4)
	if err != nil {
		return nil, fmt.Errorf("eeg: muscle filter: %w", err)
	}

	n := raw.NTimes()
	scores := make([]float64, n)
	used := 0
	for _, idx := range raw.Good() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if hasNaN(raw.Data[idx]) {
			continue
		}
		env := dsp.Envelope(band.FiltFilt(raw.Data[idx]))
		if !dsp.ZScore(env) {
			continue
		}
		for i, v := range env {
			scores[i] += v
		}
		used++
	}
	if used == 0 {
		return nil, nil
	}
	norm := 1 / math.Sqrt(float64(used))
	for i := range scores {
		scores[i] *= norm
	}
	if smooth, err := dsp.Lowpass(4, raw.SFreq, 2); err == nil {
		scores = smooth.FiltFilt(scores)
	}

	mask := make([]bool, n)
	for i, v := range scores {
		mask[i] = v > d.Threshold
	}
	minGood := int(d.MinLengthGood * raw.SFreq)
	intervals := dsp.Intervals(mask)
	merged := make([][2]int, 0, len(intervals))
	for _, iv := range intervals {
		if last := len(merged) - 1; last >= 0 && iv[0]-merged[last][1] < minGood {
			merged[last][1] = iv[1]
			continue
		}
		merged = append(merged, iv)
	}

	out := make([]Annotation, 0, len(merged))
	for _, iv := range merged {
		out = append(out, Annotation{
			Onset:       float64(iv[0]) / raw.SFreq,
			Duration:    float64(iv[1]-iv[0]) / raw.SFreq,
			Description: LabelMuscle,
		})
	}
	return out, nil
}
