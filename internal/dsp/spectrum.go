package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Welch estimates the one-sided power spectral density of x with Hann
// windowed segments of segLen samples and 50 % overlap. Segments longer than
// x shrink to len(x).
func Welch(x []float64, fs float64, segLen int) (freqs, psd []float64) {
	n := len(x)
	if n == 0 || fs <= 0 {
		return nil, nil
	}
	if segLen <= 0 || segLen > n {
		segLen = n
	}
	if segLen < 2 {
		return nil, nil
	}
	step := segLen / 2
	if step == 0 {
		step = 1
	}
	win := make([]float64, segLen)
	for i := range win {
		win[i] = 1
	}
	win = window.Hann(win)
	var winPower float64
	for _, w := range win {
		winPower += w * w
	}

	fft := fourier.NewFFT(segLen)
	bins := segLen/2 + 1
	psd = make([]float64, bins)
	seg := make([]float64, segLen)
	coeff := make([]complex128, bins)
	segments := 0
	for start := 0; start+segLen <= n; start += step {
		mean := 0.0
		for _, v := range x[start : start+segLen] {
			mean += v
		}
		mean /= float64(segLen)
		for i := range seg {
			seg[i] = (x[start+i] - mean) * win[i]
		}
		fft.Coefficients(coeff, seg)
		for k, c := range coeff {
			p := real(c)*real(c) + imag(c)*imag(c)
			if k != 0 && !(segLen%2 == 0 && k == bins-1) {
				p *= 2
			}
			psd[k] += p
		}
		segments++
	}
	scale := 1 / (fs * winPower * float64(segments))
	freqs = make([]float64, bins)
	for k := range psd {
		psd[k] *= scale
		freqs[k] = fft.Freq(k) * fs
	}
	return freqs, psd
}

// BandPower integrates psd over [low, high) Hz.
func BandPower(freqs, psd []float64, low, high float64) float64 {
	if len(freqs) < 2 {
		return 0
	}
	df := freqs[1] - freqs[0]
	total := 0.0
	for i, f := range freqs {
		if f >= low && f < high {
			total += psd[i] * df
		}
	}
	return total
}

// PeakFrequency returns the frequency of the largest psd bin in [low, high).
func PeakFrequency(freqs, psd []float64, low, high float64) float64 {
	best, at := math.Inf(-1), math.NaN()
	for i, f := range freqs {
		if f >= low && f < high && psd[i] > best {
			best, at = psd[i], f
		}
	}
	return at
}

// Envelope returns the magnitude of the analytic signal of x.
func Envelope(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	fft := fourier.NewCmplxFFT(n)
	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}
	coeff := fft.Coefficients(nil, seq)
	// Keep DC (and Nyquist for even n), double positive bins, drop negatives.
	half := n / 2
	for k := 1; k < n; k++ {
		switch {
		case n%2 == 0 && k == half:
		case k <= (n-1)/2:
			coeff[k] *= 2
		default:
			coeff[k] = 0
		}
	}
	analytic := fft.Sequence(nil, coeff)
	out := make([]float64, n)
	inv := 1 / float64(n)
	for i, c := range analytic {
		out[i] = cmplx.Abs(c) * inv
	}
	return out
}
