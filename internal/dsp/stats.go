package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// madScale converts a median absolute deviation into a normal-consistent
// standard deviation.
const madScale = 1.4826

// iqrScale converts an interquartile range into a normal-consistent standard
// deviation.
const iqrScale = 0.7413

func sortedFinite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// Median ignores NaN values; an empty input yields NaN.
func Median(x []float64) float64 {
	s := sortedFinite(x)
	n := len(s)
	switch {
	case n == 0:
		return math.NaN()
	case n%2 == 1:
		return s[n/2]
	default:
		return (s[n/2-1] + s[n/2]) / 2
	}
}

// MAD is the median absolute deviation from the median.
func MAD(x []float64) float64 {
	med := Median(x)
	if math.IsNaN(med) {
		return math.NaN()
	}
	dev := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			dev = append(dev, math.Abs(v-med))
		}
	}
	return Median(dev)
}

// RobustStd is the IQR scaled to a normal standard deviation.
func RobustStd(x []float64) float64 {
	s := sortedFinite(x)
	if len(s) == 0 {
		return math.NaN()
	}
	q1 := stat.Quantile(0.25, stat.LinInterp, s, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, s, nil)
	return iqrScale * (q3 - q1)
}

// RobustZ scores values against their median and scaled MAD. When the MAD is
// zero every finite score is zero.
func RobustZ(x []float64) []float64 {
	med := Median(x)
	spread := madScale * MAD(x)
	out := make([]float64, len(x))
	for i, v := range x {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case spread == 0 || math.IsNaN(spread):
			out[i] = 0
		default:
			out[i] = (v - med) / spread
		}
	}
	return out
}

// ZScore standardizes x in place with its sample mean and deviation and
// reports whether x had any spread.
func ZScore(x []float64) bool {
	mean, std := stat.MeanStdDev(x, nil)
	if std == 0 || math.IsNaN(std) {
		for i := range x {
			x[i] = 0
		}
		return false
	}
	for i := range x {
		x[i] = (x[i] - mean) / std
	}
	return true
}

// Summary holds the descriptive statistics reported by the adapters.
type Summary struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// Summarize ignores NaN values.
func Summarize(x []float64) Summary {
	s := sortedFinite(x)
	if len(s) == 0 {
		return Summary{Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	}
	out := Summary{Count: len(s), Min: s[0], Max: s[len(s)-1]}
	if len(s) == 1 {
		out.Mean = s[0]
		return out
	}
	out.Mean, out.Std = stat.MeanStdDev(s, nil)
	return out
}

// Diff returns the successive differences of x.
func Diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// RMS is the root mean square of the finite values of x.
func RMS(x []float64) float64 {
	var sum float64
	n := 0
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		sum += v * v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / float64(n))
}
