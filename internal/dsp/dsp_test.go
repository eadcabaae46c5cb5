package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sine(freq, fs float64, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return out
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestNotchRemovesLineNoise(t *testing.T) {
	const fs = 500.0
	signal := sine(10, fs, 5000, 1)
	noise := sine(60, fs, 5000, 1)
	mixed := make([]float64, len(signal))
	for i := range mixed {
		mixed[i] = signal[i] + noise[i]
	}

	filter, err := Notch(60, fs, 30)
	require.NoError(t, err)
	out := filter.FiltFilt(mixed)
	require.Len(t, out, len(mixed))

	residual := make([]float64, len(out))
	for i := range out {
		residual[i] = out[i] - signal[i]
	}
	// Ignore the edges where the reflection padding still rings.
	require.Less(t, rms(residual[500:4500]), 0.05)
}

func TestBandpassAttenuatesOutOfBand(t *testing.T) {
	const fs = 250.0
	filter, err := Bandpass(1, 50, fs, 4)
	require.NoError(t, err)
	require.Len(t, filter, 4)

	pass := filter.FiltFilt(sine(10, fs, 5000, 1))
	stop := filter.FiltFilt(sine(100, fs, 5000, 1))
	require.InDelta(t, 1/math.Sqrt2, rms(pass[500:4500]), 0.05)
	require.Less(t, rms(stop[500:4500]), 0.05)
}

func TestFilterDesignValidation(t *testing.T) {
	_, err := Lowpass(130, 250, 2)
	require.Error(t, err)
	_, err = Bandpass(50, 10, 250, 2)
	require.Error(t, err)
	_, err = Notch(60, 250, 0)
	require.Error(t, err)
}

func TestWelchFindsTone(t *testing.T) {
	const fs = 200.0
	freqs, psd := Welch(sine(25, fs, 4000, 2), fs, 400)
	require.NotEmpty(t, freqs)
	require.InDelta(t, 25, PeakFrequency(freqs, psd, 1, 100), 0.5)
	// Power of a sine with amplitude A is A^2/2.
	require.InDelta(t, 2.0, BandPower(freqs, psd, 20, 30), 0.2)
}

func TestEnvelopeOfModulatedTone(t *testing.T) {
	const fs = 1000.0
	carrier := sine(100, fs, 2000, 3)
	env := Envelope(carrier)
	require.Len(t, env, len(carrier))
	for _, v := range env[200:1800] {
		require.InDelta(t, 3, v, 0.05)
	}
}

func TestRobustStatistics(t *testing.T) {
	x := []float64{1, 2, 3, 4, 100, math.NaN()}
	require.Equal(t, 3.0, Median(x))
	require.Equal(t, 1.0, MAD(x))

	z := RobustZ([]float64{1, 1, 1, 10})
	require.Equal(t, []float64{0, 0, 0, 0}, z)

	z = RobustZ([]float64{1, 2, 3, 4, 5})
	require.InDelta(t, 0, z[2], 1e-12)
	require.InDelta(t, 2/madScale, z[4], 1e-12)

	summary := Summarize([]float64{2, 4, math.NaN()})
	require.Equal(t, 2, summary.Count)
	require.Equal(t, 3.0, summary.Mean)
	require.Equal(t, 4.0, summary.Max)
}

func TestFindPeaksHonoursDistance(t *testing.T) {
	x := []float64{0, 5, 0, 6, 0, 0, 0, 0, 4, 0}
	require.Equal(t, []int{1, 3, 8}, FindPeaks(x, 1, 0))
	require.Equal(t, []int{3, 8}, FindPeaks(x, 1, 3))
	require.Equal(t, []int{3}, FindPeaks(x, 5.5, 0))
}

func TestIntervals(t *testing.T) {
	mask := []bool{true, true, false, false, true, false, true}
	require.Equal(t, [][2]int{{0, 2}, {4, 5}, {6, 7}}, Intervals(mask))
	require.Empty(t, Intervals([]bool{false, false}))
}
