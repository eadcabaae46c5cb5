package eeg

import (
	"math"
	"sort"
)

const (
	spatialNeighbours     = 6
	correlatedNeighbours  = 4
	minPositionedChannels = 3
)

// InterpolateBads replaces each bad channel in place with a weighted mix of
// good channels. With a montage covering the channel its nearest positioned
// neighbours are used (inverse squared distance); otherwise its most
// correlated good channels. A channel with no usable neighbours becomes the
// mean of all good channels.
func InterpolateBads(raw *Raw, bads []string) {
	if len(bads) == 0 {
		return
	}
	good := raw.Exclude(bads)
	if len(good) == 0 {
		return
	}
	replacements := make(map[int][]float64, len(bads))
	for _, name := range bads {
		idx := raw.Index(name)
		if idx < 0 {
			continue
		}
		neighbours, weights := spatialWeights(raw, idx, good)
		if len(neighbours) == 0 {
			neighbours, weights = correlationWeights(raw, idx, good)
		}
		if len(neighbours) == 0 {
			neighbours = good
			weights = make([]float64, len(good))
			for i := range weights {
				weights[i] = 1
			}
		}
		replacements[idx] = mix(raw, neighbours, weights)
	}
	for idx, data := range replacements {
		raw.Data[idx] = data
	}
}

type neighbour struct {
	idx   int
	score float64
}

func spatialWeights(raw *Raw, target int, good []int) ([]int, []float64) {
	if raw.Montage == nil {
		return nil, nil
	}
	pos, ok := raw.Montage[raw.Channels[target]]
	if !ok {
		return nil, nil
	}
	var candidates []neighbour
	for _, idx := range good {
		if p, ok := raw.Montage[raw.Channels[idx]]; ok {
			candidates = append(candidates, neighbour{idx: idx, score: pos.distance(p)})
		}
	}
	if len(candidates) < minPositionedChannels {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })
	if len(candidates) > spatialNeighbours {
		candidates = candidates[:spatialNeighbours]
	}
	if candidates[0].score < 1e-9 {
		return []int{candidates[0].idx}, []float64{1}
	}
	idxs := make([]int, len(candidates))
	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		idxs[i] = c.idx
		weights[i] = 1 / (c.score * c.score)
	}
	return idxs, weights
}

func correlationWeights(raw *Raw, target int, good []int) ([]int, []float64) {
	base, ok := normalizeWindow(raw.Data[target], nil)
	if !ok {
		return nil, nil
	}
	var candidates []neighbour
	buf := make([]float64, len(base))
	for _, idx := range good {
		norm, ok := normalizeWindow(raw.Data[idx], buf)
		if !ok {
			continue
		}
		if c := dot(base, norm); !math.IsNaN(c) && c != 0 {
			candidates = append(candidates, neighbour{idx: idx, score: c})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return math.Abs(candidates[i].score) > math.Abs(candidates[j].score) })
	if len(candidates) > correlatedNeighbours {
		candidates = candidates[:correlatedNeighbours]
	}
	idxs := make([]int, len(candidates))
	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		idxs[i] = c.idx
		weights[i] = c.score
	}
	return idxs, weights
}

// mix returns sum(w_i * x_i) / sum(|w_i|).
func mix(raw *Raw, idxs []int, weights []float64) []float64 {
	out := make([]float64, raw.NTimes())
	total := 0.0
	for _, w := range weights {
		total += math.Abs(w)
	}
	if total == 0 {
		return out
	}
	for k, idx := range idxs {
		w := weights[k] / total
		for i, v := range raw.Data[idx] {
			out[i] += w * v
		}
	}
	return out
}
