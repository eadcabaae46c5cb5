package eeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"mobiqc/internal/logging"
)

// MethodFastICA is the only supported decomposition method.
const MethodFastICA = "fastica"

// Decomposer fits an independent component model to raw.
type Decomposer interface {
	Fit(ctx context.Context, raw *Raw) (*ICA, error)
}

// ICA is a fitted decomposition. Unmixing maps centred channel data to
// sources; Mixing maps sources back to channels.
type ICA struct {
	Method            string
	Channels          []string
	Mean              []float64
	Unmixing          *mat.Dense
	Mixing            *mat.Dense
	ExplainedVariance []float64
	NComponents       int
	Iterations        int
	Converged         bool
}

// Sources projects raw onto the fitted components.
func (ica *ICA) Sources(raw *Raw) (*mat.Dense, error) {
	p := len(ica.Channels)
	n := raw.NTimes()
	x := mat.NewDense(p, n, nil)
	for k, name := range ica.Channels {
		idx := raw.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("eeg: channel %s missing from signal", name)
		}
		row := x.RawRowView(k)
		for t, v := range raw.Data[idx] {
			row[t] = v - ica.Mean[k]
		}
	}
	var out mat.Dense
	out.Mul(ica.Unmixing, x)
	return &out, nil
}

// FastICA whitens the data with PCA, keeps the leading components that
// explain Variance of the total, and runs symmetric FastICA with a tanh
// contrast on them.
type FastICA struct {
	Variance   float64
	MaxIter    int
	Tol        float64
	Seed       uint64
	MaxSamples int
	Logger     *slog.Logger
}

const (
	defaultICATol        = 1e-4
	defaultICASeed       = 97
	defaultICAMaxSamples = 50000
)

// Fit implements Decomposer. Channels in raw.Bads and channels without
// variance are left out.
func (f FastICA) Fit(ctx context.Context, raw *Raw) (*ICA, error) {
	logger := f.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	variance := f.Variance
	if variance <= 0 || variance > 1 {
		variance = 0.95
	}
	maxIter := f.MaxIter
	if maxIter <= 0 {
		maxIter = 200
	}
	tol := f.Tol
	if tol <= 0 {
		tol = defaultICATol
	}
	seed := f.Seed
	if seed == 0 {
		seed = defaultICASeed
	}
	maxSamples := f.MaxSamples
	if maxSamples <= 0 {
		maxSamples = defaultICAMaxSamples
	}

	var picks []int
	for _, idx := range raw.Good() {
		ch := raw.Data[idx]
		if !hasNaN(ch) && stdDev(ch) > flatThreshold {
			picks = append(picks, idx)
		}
	}
	n := raw.NTimes()
	if len(picks) == 0 || n < 2 {
		return nil, errors.New("eeg: nothing to decompose")
	}

	stride := (n + maxSamples - 1) / maxSamples
	m := (n + stride - 1) / stride
	p := len(picks)
	x := mat.NewDense(p, m, nil)
	mean := make([]float64, p)
	channels := make([]string, p)
	for k, idx := range picks {
		channels[k] = raw.Channels[idx]
		row := x.RawRowView(k)
		for j := range row {
			row[j] = raw.Data[idx][j*stride]
			mean[k] += row[j]
		}
		mean[k] /= float64(m)
		for j := range row {
			row[j] -= mean[k]
		}
	}

	var cov mat.SymDense
	cov.SymOuterK(1/float64(m-1), x)
	var eig mat.EigenSym
	if !eig.Factorize(&cov, true) {
		return nil, errors.New("eeg: covariance eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	total := 0.0
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return nil, errors.New("eeg: signal has no variance")
	}
	largest := values[len(values)-1]
	var order []int
	var explained []float64
	cumulative := 0.0
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] <= largest*1e-12 {
			break
		}
		order = append(order, i)
		ratio := values[i] / total
		explained = append(explained, ratio)
		cumulative += ratio
		if cumulative >= variance {
			break
		}
	}
	k := len(order)

	whitening := mat.NewDense(k, p, nil)
	dewhitening := mat.NewDense(p, k, nil)
	for i, col := range order {
		scale := math.Sqrt(values[col])
		for c := 0; c < p; c++ {
			v := vectors.At(c, col)
			whitening.Set(i, c, v/scale)
			dewhitening.Set(c, i, v*scale)
		}
	}
	var z mat.Dense
	z.Mul(whitening, x)

	w, iterations, converged, err := symmetricFastICA(ctx, &z, k, maxIter, tol, seed)
	if err != nil {
		return nil, err
	}
	if !converged {
		logging.WarnWithContext(ctx, logger, "fastica did not converge",
			"eeg_ica_not_converged",
			logging.Int("iterations", iterations),
			logging.Int("components", k),
			logging.String(logging.FieldErrorHint, "raise eeg.ica_max_iter"),
			logging.String(logging.FieldImpact, "components may be poorly separated"),
		)
	}

	var unmixing, mixing mat.Dense
	unmixing.Mul(w, whitening)
	mixing.Mul(dewhitening, w.T())

	logger.Info("ica fitted",
		logging.String("method", MethodFastICA),
		logging.Int("components", k),
		logging.Int("channels", p),
		logging.Float64("explained_variance", cumulative),
		logging.Int("iterations", iterations))

	return &ICA{
		Method:            MethodFastICA,
		Channels:          channels,
		Mean:              mean,
		Unmixing:          &unmixing,
		Mixing:            &mixing,
		ExplainedVariance: explained,
		NComponents:       k,
		Iterations:        iterations,
		Converged:         converged,
	}, nil
}

func symmetricFastICA(ctx context.Context, z *mat.Dense, k, maxIter int, tol float64, seed uint64) (*mat.Dense, int, bool, error) {
	_, m := z.Dims()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	init := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			init.Set(i, j, rng.NormFloat64())
		}
	}
	w, err := decorrelate(init)
	if err != nil {
		return nil, 0, false, err
	}

	g := mat.NewDense(k, m, nil)
	deriv := make([]float64, k)
	invM := 1 / float64(m)
	for iter := 1; iter <= maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, iter, false, err
		}
		var wx mat.Dense
		wx.Mul(w, z)
		for i := 0; i < k; i++ {
			src := wx.RawRowView(i)
			dst := g.RawRowView(i)
			sum := 0.0
			for j, v := range src {
				t := math.Tanh(v)
				dst[j] = t
				sum += 1 - t*t
			}
			deriv[i] = sum * invM
		}
		var next mat.Dense
		next.Mul(g, z.T())
		for i := 0; i < k; i++ {
			row := next.RawRowView(i)
			for j := range row {
				row[j] = row[j]*invM - deriv[i]*w.At(i, j)
			}
		}
		updated, err := decorrelate(&next)
		if err != nil {
			return nil, iter, false, err
		}

		var overlap mat.Dense
		overlap.Mul(updated, w.T())
		limit := 0.0
		for i := 0; i < k; i++ {
			limit = math.Max(limit, math.Abs(math.Abs(overlap.At(i, i))-1))
		}
		w = updated
		if limit < tol {
			return w, iter, true, nil
		}
	}
	return w, maxIter, false, nil
}

// decorrelate returns (W Wᵀ)^(-1/2) W.
func decorrelate(w *mat.Dense) (*mat.Dense, error) {
	var s mat.SymDense
	s.SymOuterK(1, w)
	var eig mat.EigenSym
	if !eig.Factorize(&s, true) {
		return nil, errors.New("eeg: decorrelation failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	inv := make([]float64, len(values))
	for i, v := range values {
		if v <= 0 {
			return nil, errors.New("eeg: singular unmixing matrix")
		}
		inv[i] = 1 / math.Sqrt(v)
	}
	var tmp, root, out mat.Dense
	tmp.Mul(&vectors, mat.NewDiagDense(len(inv), inv))
	root.Mul(&tmp, vectors.T())
	out.Mul(&root, w)
	return &out, nil
}
