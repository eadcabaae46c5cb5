package eeg

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlinkDetectorFindsDeflections(t *testing.T) {
	const sfreq, seconds = 100.0, 30
	blinkTimes := []float64{5, 15, 25}
	rng := rand.New(rand.NewPCG(4, 4))
	n := int(sfreq * seconds)
	frontal := make([]float64, n)
	quiet := make([]float64, n)
	for i := range frontal {
		t := float64(i) / sfreq
		v := 0.0
		for _, b := range blinkTimes {
			d := (t - b) / 0.1
			v += 1e-4 * math.Exp(-0.5*d*d)
		}
		frontal[i] = v + 5e-6*rng.NormFloat64()
		quiet[i] = 5e-6 * rng.NormFloat64()
	}
	raw, err := NewRaw([]string{"E25", "E8", "E50"}, sfreq, [][]float64{quiet, frontal, quiet})
	require.NoError(t, err)

	detector := BlinkDetector{Channels: []string{"E25", "E8"}, Window: 0.5}
	anns, err := detector.Detect(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, anns, len(blinkTimes))
	for i, ann := range anns {
		require.Equal(t, LabelBlink, ann.Description)
		require.Equal(t, 0.5, ann.Duration)
		require.InDelta(t, blinkTimes[i]-0.25, ann.Onset, 0.05)
	}
}

func TestBlinkNearRecordingStartIsClipped(t *testing.T) {
	const sfreq, n = 100.0, 1000
	frontal := make([]float64, n)
	for i := range frontal {
		d := (float64(i)/sfreq - 0.2) / 0.05
		frontal[i] = 1e-4 * math.Exp(-0.5*d*d)
	}
	raw, err := NewRaw([]string{"E25", "E8"}, sfreq, [][]float64{frontal, frontal})
	require.NoError(t, err)

	anns, err := BlinkDetector{Channels: []string{"E25", "E8"}, Window: 0.5}.Detect(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	require.Less(t, anns[0].Onset, 0.0)

	mask := BadMask(n, sfreq, anns)
	require.True(t, mask[0])
	bad := 0
	for _, v := range mask {
		if v {
			bad++
		}
	}
	require.InDelta(t, 45, bad, 3)
}

func TestBlinkDetectorMissingChannel(t *testing.T) {
	raw, err := NewRaw([]string{"E1"}, 100, [][]float64{make([]float64, 1000)})
	require.NoError(t, err)
	_, err = BlinkDetector{Channels: []string{"E25"}, Window: 0.5}.Detect(context.Background(), raw)
	require.ErrorContains(t, err, "E25")
}

func TestMuscleDetectorFindsBurst(t *testing.T) {
	const sfreq, seconds = 500.0, 10
	rng := rand.New(rand.NewPCG(8, 8))
	n := int(sfreq * seconds)
	names := make([]string, 8)
	data := make([][]float64, 8)
	for c := range data {
		names[c] = string(rune('A' + c))
		data[c] = make([]float64, n)
		for i := range data[c] {
			t := float64(i) / sfreq
			v := 1e-6 * rng.NormFloat64()
			if t >= 4 && t < 5 {
				v += 2e-5 * math.Sin(2*math.Pi*107*t+float64(c))
			}
			data[c][i] = v
		}
	}
	raw, err := NewRaw(names, sfreq, data)
	require.NoError(t, err)

	anns, err := MuscleDetector{Threshold: 4, MinLengthGood: 0.1, Low: 95, High: 120}.Detect(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	require.Equal(t, LabelMuscle, anns[0].Description)
	require.InDelta(t, 4.0, anns[0].Onset, 0.2)
	require.InDelta(t, 5.0, anns[0].Onset+anns[0].Duration, 0.2)
}

func TestMuscleDetectorSkipsAboveNyquist(t *testing.T) {
	raw, err := NewRaw([]string{"A"}, 200, [][]float64{make([]float64, 2000)})
	require.NoError(t, err)
	anns, err := MuscleDetector{Threshold: 3, Low: 95, High: 120}.Detect(context.Background(), raw)
	require.NoError(t, err)
	require.Empty(t, anns)
}
