package eeg

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"mobiqc/internal/recording"
	"mobiqc/internal/services"
)

type fakeSource struct {
	table *recording.Table
	stim  recording.StimTable
}

func (f *fakeSource) Table(...string) (*recording.Table, error) { return f.table, nil }
func (f *fakeSource) Stim() (recording.StimTable, error)        { return f.stim, nil }

// newFakeSource builds a 60 Hz recording whose Experiment segment holds
// exactly 3600 samples, with 300 samples either side.
func newFakeSource() *fakeSource {
	const rate, lead, segment = 60.0, 300, 3600
	total := lead + segment + lead
	rng := rand.New(rand.NewPCG(7, 11))
	ts := make([]float64, total)
	for i := range ts {
		ts[i] = 100 + float64(i)/rate
	}
	freqs := []float64{3, 7, 11, 13}
	data := make([][]float64, len(freqs))
	for c, f := range freqs {
		data[c] = make([]float64, total)
		for i := range data[c] {
			data[c][i] = 20*math.Sin(2*math.Pi*f*ts[i]) + rng.NormFloat64()
		}
	}
	return &fakeSource{
		table: &recording.Table{
			Name:        "EEG",
			Columns:     []string{"1", "2", "3", "4"},
			TimeStamps:  ts,
			Data:        data,
			NominalRate: rate,
		},
		stim: recording.NewStimTable([]recording.Marker{
			{Time: ts[lead], Label: "Experiment_start"},
			{Time: ts[lead+segment-1], Label: "Experiment_end"},
			{Time: ts[lead+10], Label: "trial"},
		}),
	}
}

type countingReferencer struct {
	calls int
}

func (r *countingReferencer) Reference(_ context.Context, raw *Raw) (*Referenced, error) {
	r.calls++
	return &Referenced{
		Raw:          raw.Clone(),
		BadBefore:    []string{"Cz"},
		Interpolated: []string{},
		BadAfter:     []string{"Cz"},
	}, nil
}

type stubDetector []Annotation

func (d stubDetector) Detect(context.Context, *Raw) ([]Annotation, error) {
	return append([]Annotation(nil), d...), nil
}

func newTestPipeline(ref Referencer, opens *int, src Source) *Pipeline {
	return &Pipeline{
		Cache:            &ArtifactCache{},
		Referencer:       ref,
		Blinks:           stubDetector{{Onset: 10, Duration: 2, Description: LabelBlink}},
		Muscle:           stubDetector{{Onset: 30, Duration: 1, Description: LabelMuscle}},
		Decomposer:       FastICA{Variance: 0.99, MaxIter: 300},
		NotchFreq:        60,
		Bandpass:         [2]float64{1, 40},
		ReferenceChannel: "Cz",
		Version:          "1",
		Open: func(string) (Source, error) {
			*opens++
			return src, nil
		},
	}
}

func TestPipelineSixtySecondScenario(t *testing.T) {
	path := writeRecording(t, t.TempDir(), "P0001", "recording bytes")
	src := newFakeSource()
	ref := &countingReferencer{}
	opens := 0
	pipeline := newTestPipeline(ref, &opens, src)

	result, err := pipeline.Run(context.Background(), path, "Experiment")
	require.NoError(t, err)
	require.False(t, result.CacheHit)
	require.Equal(t, 1, ref.calls)
	require.Equal(t, 1, opens)
	require.NotNil(t, result.Vars.PercentGood)
	require.InDelta(t, 95.0, *result.Vars.PercentGood, 1e-9)
	require.Equal(t, 3600, result.Raw.NTimes())
	require.Equal(t, 60.0, result.Raw.SFreq)
	require.Equal(t, []string{"E1", "E2", "E3", "E4", "Cz"}, result.Raw.Channels)
	require.Len(t, result.Annotations, 2)
	require.Equal(t, []string{"Cz"}, result.Vars.BadChannelsAfter)

	require.NotNil(t, result.ICA)
	require.NotContains(t, result.ICA.Channels, "Cz")
	require.Positive(t, result.ICA.NComponents)

	require.Equal(t, src.table.TimeStamps[300:3900], result.Frame.TimeStamps)
	require.Equal(t, result.Raw.Channels, result.Frame.Columns)

	data, err := os.ReadFile(VarsPathFor(pipeline.Cache.SignalPath("P0001", path)))
	require.NoError(t, err)
	var stored Vars
	require.NoError(t, json.Unmarshal(data, &stored))
	require.NotNil(t, stored.PercentGood)
	require.InDelta(t, 95.0, *stored.PercentGood, 1e-9)
	require.Equal(t, "1", stored.PipelineVersion)
}

func TestPipelineCacheHitSkipsReferencing(t *testing.T) {
	path := writeRecording(t, t.TempDir(), "P0002", "recording bytes")
	src := newFakeSource()
	ref := &countingReferencer{}
	opens := 0

	first, err := newTestPipeline(ref, &opens, src).Run(context.Background(), path, "Experiment")
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := newTestPipeline(ref, &opens, src).Run(context.Background(), path, "Experiment")
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, 1, ref.calls)
	require.Equal(t, 1, opens)
	require.Equal(t, first.Vars.BadChannelsBefore, second.Vars.BadChannelsBefore)
	require.InDelta(t, *first.Vars.PercentGood, *second.Vars.PercentGood, 1e-9)
	require.Equal(t, first.Frame.TimeStamps, second.Frame.TimeStamps)
	require.Len(t, second.Annotations, 2)

	bumped := newTestPipeline(ref, &opens, src)
	bumped.Version = "2"
	third, err := bumped.Run(context.Background(), path, "Experiment")
	require.NoError(t, err)
	require.False(t, third.CacheHit)
	require.Equal(t, 2, ref.calls)
}

func TestPipelineMissingSegment(t *testing.T) {
	path := writeRecording(t, t.TempDir(), "P0003", "recording bytes")
	src := newFakeSource()
	src.stim = recording.NewStimTable([]recording.Marker{{Time: 105, Label: "Experiment_start"}})
	opens := 0

	_, err := newTestPipeline(&countingReferencer{}, &opens, src).Run(context.Background(), path, "Experiment")
	require.Error(t, err)
	require.True(t, errors.Is(err, services.ErrNotFound))
	require.NoFileExists(t, (&ArtifactCache{}).SignalPath("P0003", path))
}

func TestPipelineRejectsPathWithoutSubject(t *testing.T) {
	opens := 0
	_, err := newTestPipeline(&countingReferencer{}, &opens, newFakeSource()).
		Run(context.Background(), "/data/recording.xdf", "Experiment")
	require.Error(t, err)
	require.Zero(t, opens)
}
