package dsp

import (
	"fmt"
	"math"
)

// Butterworth Q for a single second-order section.
const butterworthQ = 1 / math.Sqrt2

// Biquad is one second-order IIR section in transposed direct form II,
// normalized so a0 == 1.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

type kind int

const (
	lowpass kind = iota
	highpass
	notch
)

func design(k kind, freq, fs, q float64) (Biquad, error) {
	if fs <= 0 {
		return Biquad{}, fmt.Errorf("dsp: sample rate must be positive, got %g", fs)
	}
	if freq <= 0 || freq >= fs/2 {
		return Biquad{}, fmt.Errorf("dsp: frequency %g Hz outside (0, %g)", freq, fs/2)
	}
	w0 := 2 * math.Pi * freq / fs
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	var b0, b1, b2 float64
	switch k {
	case lowpass:
		b0, b1, b2 = (1-cosw)/2, 1-cosw, (1-cosw)/2
	case highpass:
		b0, b1, b2 = (1+cosw)/2, -(1 + cosw), (1+cosw)/2
	case notch:
		b0, b1, b2 = 1, -2*cosw, 1
	}
	return Biquad{
		B0: b0 / a0, B1: b1 / a0, B2: b2 / a0,
		A1: -2 * cosw / a0, A2: (1 - alpha) / a0,
	}, nil
}

// Gain returns the DC gain of the section.
func (b Biquad) Gain() float64 {
	den := 1 + b.A1 + b.A2
	if den == 0 {
		return 0
	}
	return (b.B0 + b.B1 + b.B2) / den
}

// Cascade is a chain of sections applied in order.
type Cascade []Biquad

// Lowpass returns a Butterworth-style low-pass of the given order (rounded
// up to an even number).
func Lowpass(cutoff, fs float64, order int) (Cascade, error) {
	return repeat(lowpass, cutoff, fs, butterworthQ, order)
}

// Highpass returns a Butterworth-style high-pass of the given order.
func Highpass(cutoff, fs float64, order int) (Cascade, error) {
	return repeat(highpass, cutoff, fs, butterworthQ, order)
}

// Bandpass chains a high-pass at low and a low-pass at high.
func Bandpass(low, high, fs float64, order int) (Cascade, error) {
	if low >= high {
		return nil, fmt.Errorf("dsp: band %g-%g Hz is empty", low, high)
	}
	hp, err := Highpass(low, fs, order)
	if err != nil {
		return nil, err
	}
	lp, err := Lowpass(high, fs, order)
	if err != nil {
		return nil, err
	}
	return append(hp, lp...), nil
}

// Notch returns a band-stop section centred on freq with quality factor q.
func Notch(freq, fs, q float64) (Cascade, error) {
	if q <= 0 {
		return nil, fmt.Errorf("dsp: notch quality must be positive")
	}
	section, err := design(notch, freq, fs, q)
	if err != nil {
		return nil, err
	}
	return Cascade{section}, nil
}

func repeat(k kind, freq, fs, q float64, order int) (Cascade, error) {
	sections := (order + 1) / 2
	if sections < 1 {
		sections = 1
	}
	section, err := design(k, freq, fs, q)
	if err != nil {
		return nil, err
	}
	out := make(Cascade, sections)
	for i := range out {
		out[i] = section
	}
	return out, nil
}

// Apply runs the cascade causally over x in place, starting from the steady
// state for a constant input of x[0].
func (c Cascade) Apply(x []float64) {
	if len(x) == 0 {
		return
	}
	level := x[0]
	for _, s := range c {
		gain := s.Gain()
		out := gain * level
		z1 := out - s.B0*level
		z2 := s.B2*level - s.A2*out
		for i, in := range x {
			y := s.B0*in + z1
			z1 = s.B1*in - s.A1*y + z2
			z2 = s.B2*in - s.A2*y
			x[i] = y
		}
		level = out
	}
}

// FiltFilt applies the cascade forward and backward for zero phase, padding
// both ends with an odd reflection. The result is a new slice.
func (c Cascade) FiltFilt(x []float64) []float64 {
	n := len(x)
	if n == 0 || len(c) == 0 {
		return append([]float64(nil), x...)
	}
	pad := 3 * (2*len(c) + 1)
	if pad > n-1 {
		pad = n - 1
	}
	ext := make([]float64, n+2*pad)
	for i := 0; i < pad; i++ {
		ext[i] = 2*x[0] - x[pad-i]
		ext[n+pad+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)

	c.Apply(ext)
	reverse(ext)
	c.Apply(ext)
	reverse(ext)
	return ext[pad : pad+n]
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
