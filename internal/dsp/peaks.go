package dsp

import "sort"

// FindPeaks returns the indexes of local maxima above threshold, in time
// order. When two peaks are closer than minDistance samples the smaller one
// is dropped.
func FindPeaks(x []float64, threshold float64, minDistance int) []int {
	var candidates []int
	for i := 1; i < len(x)-1; i++ {
		if x[i] > threshold && x[i] >= x[i-1] && x[i] > x[i+1] {
			candidates = append(candidates, i)
		}
	}
	if minDistance <= 1 || len(candidates) < 2 {
		return candidates
	}

	byHeight := append([]int(nil), candidates...)
	sort.SliceStable(byHeight, func(a, b int) bool { return x[byHeight[a]] > x[byHeight[b]] })
	removed := make(map[int]bool, len(candidates))
	for _, peak := range byHeight {
		if removed[peak] {
			continue
		}
		pos := sort.SearchInts(candidates, peak)
		for j := pos - 1; j >= 0 && peak-candidates[j] < minDistance; j-- {
			removed[candidates[j]] = true
		}
		for j := pos + 1; j < len(candidates) && candidates[j]-peak < minDistance; j++ {
			removed[candidates[j]] = true
		}
	}
	kept := candidates[:0:0]
	for _, peak := range candidates {
		if !removed[peak] {
			kept = append(kept, peak)
		}
	}
	return kept
}

// Intervals converts a boolean mask into [start, end) index pairs of true
// runs.
func Intervals(mask []bool) [][2]int {
	var out [][2]int
	start := -1
	for i, v := range mask {
		switch {
		case v && start < 0:
			start = i
		case !v && start >= 0:
			out = append(out, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, [2]int{start, len(mask)})
	}
	return out
}
