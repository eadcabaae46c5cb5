package eeg

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeAnnotationsConcatenates(t *testing.T) {
	blinks := []Annotation{{Onset: 1, Duration: 0.5, Description: LabelBlink}, {Onset: 3, Duration: 0.5, Description: LabelBlink}}
	muscle := []Annotation{{Onset: 1.2, Duration: 1, Description: LabelMuscle}}
	existing := []Annotation{{Onset: 1, Duration: 0.5, Description: "BAD_manual"}}

	merged := MergeAnnotations(blinks, muscle, existing)
	require.Len(t, merged, len(blinks)+len(muscle)+len(existing))
	require.Equal(t, blinks[0], merged[0])
	require.Equal(t, blinks[1], merged[1])
	require.Equal(t, muscle[0], merged[2])
	require.Equal(t, existing[0], merged[3])
	require.Equal(t, 2, CountLabel(merged, LabelBlink))

	require.Empty(t, MergeAnnotations(nil, nil))
}

func TestPercentGoodSixtySecondScenario(t *testing.T) {
	const sfreq = 60.0
	n := 3600
	annotations := MergeAnnotations(
		[]Annotation{{Onset: 10, Duration: 2, Description: LabelBlink}},
		[]Annotation{{Onset: 30, Duration: 1, Description: LabelMuscle}},
	)
	require.InDelta(t, 95.0, PercentGood(n, sfreq, annotations), 1e-9)
}

func TestPercentGoodClipsAndCountsOverlapOnce(t *testing.T) {
	anns := []Annotation{
		{Onset: -1, Duration: 2},  // covers [-60, 60) -> [0, 60)
		{Onset: 0.5, Duration: 1}, // overlaps the first
		{Onset: 59.5, Duration: 5},
	}
	mask := BadMask(3600, 60, anns)
	bad := 0
	for _, v := range mask {
		if v {
			bad++
		}
	}
	require.Equal(t, 60+30+30, bad)
	require.Equal(t, 0.0, PercentGood(0, 60, anns))
}

func TestPercentGoodMonotoneAndBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const n, sfreq = 6000, 100.0
	for trial := 0; trial < 50; trial++ {
		var anns []Annotation
		prev := PercentGood(n, sfreq, anns)
		require.Equal(t, 100.0, prev)
		for i := 0; i < 20; i++ {
			anns = append(anns, Annotation{
				Onset:    rng.Float64()*70 - 5,
				Duration: rng.Float64() * 5,
			})
			got := PercentGood(n, sfreq, anns)
			require.LessOrEqual(t, got, prev)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, 100.0)
			prev = got
		}
	}
}
