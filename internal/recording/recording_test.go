package recording_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mobiqc/internal/recording"
	"mobiqc/internal/services"
	"mobiqc/internal/xdf"
)

func TestParseSubjectID(t *testing.T) {
	cases := map[string]string{
		"/data/sub-P5029423/sub-P5029423_ses-S001_task-CUNY_run-001_mobi.xdf": "P5029423",
		"sub-P0001.xdf":            "P0001",
		"/data/sub-A1/session.xdf": "A1",
	}
	for path, want := range cases {
		got, err := recording.ParseSubjectID(path)
		require.NoError(t, err, path)
		require.Equal(t, want, got, path)
	}

	_, err := recording.ParseSubjectID("/data/P0001.xdf")
	require.ErrorIs(t, err, services.ErrValidation)
	_, err = recording.ParseSubjectID("/data/sub-_x.xdf")
	require.ErrorIs(t, err, services.ErrValidation)
}

func linearTable(n int, rate float64) *recording.Table {
	ts := make([]float64, n)
	col := make([]float64, n)
	for i := range ts {
		ts[i] = 100 + float64(i)/rate
		col[i] = float64(i)
	}
	return &recording.Table{Columns: []string{"E1"}, TimeStamps: ts, Data: [][]float64{col}, NominalRate: rate}
}

func TestTableSampleRateAndCrop(t *testing.T) {
	table := linearTable(600, 60)
	require.InDelta(t, 60, table.SampleRate(), 1e-9)

	cropped, err := table.Crop(101, 102)
	require.NoError(t, err)
	require.Equal(t, 61, cropped.Len())
	require.InDelta(t, 101, cropped.TimeStamps[0], 1e-9)
	require.Equal(t, 60.0, cropped.Data[0][0])

	cropped.Data[0][0] = -1
	require.Equal(t, 60.0, table.Data[0][60], "crop must not alias source")

	_, err = table.Crop(5, 1)
	require.Error(t, err)
}

func TestTableGapsAndMissing(t *testing.T) {
	table := linearTable(10, 10)
	table.TimeStamps[5] += 0.5
	for i := 6; i < 10; i++ {
		table.TimeStamps[i] += 0.5
	}
	table.Data[0][2] = math.NaN()

	gaps := table.Gaps()
	require.Len(t, gaps, 1)
	require.InDelta(t, 0.6, gaps[0], 1e-9)
	require.InDelta(t, 0.1, table.MissingFraction(), 1e-9)
}

func TestStimSegment(t *testing.T) {
	stim := recording.NewStimTable([]recording.Marker{
		{Time: 90, Label: "Experiment_end"},
		{Time: 10, Label: "RestingState_start"},
		{Time: 30, Label: "experiment_START"},
		{Time: 45, Label: "trial"},
	})

	seg, err := stim.Segment("Experiment")
	require.NoError(t, err)
	require.Equal(t, 30.0, seg.Start)
	require.Equal(t, 90.0, seg.End)
	require.Equal(t, 60.0, seg.Duration())
	require.Len(t, stim.Within(seg), 3)
	require.Equal(t, 1, stim.Count("trial"))

	_, err = stim.Segment("RestingState")
	var notFound *services.NotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "RestingState_end", notFound.Pattern)
}

func writeSession(t *testing.T, path string, header xdf.FileHeader) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := xdf.NewWriter(f, header)
	require.NoError(t, err)
	require.NoError(t, w.WriteStreamHeader(1, xdf.StreamInfo{
		Name: "EGI", Type: "EEG", ChannelCount: 2, NominalSRate: 10, ChannelFormat: xdf.FormatFloat32,
	}))
	require.NoError(t, w.WriteStreamHeader(2, xdf.StreamInfo{
		Name: "Stim", Type: "Markers", ChannelCount: 1, ChannelFormat: xdf.FormatString,
	}))
	ts := []float64{0, 0.1, 0.2, 0.3}
	require.NoError(t, w.WriteSamples(1, ts, [][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}}))
	require.NoError(t, w.WriteStringSamples(2, []float64{0.1, 0.2}, [][]string{{"Experiment_start"}, {"Experiment_end"}}))
}

func TestOpenSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub-P0001", "sub-P0001_ses-S001_mobi.xdf")
	writeSession(t, path, xdf.FileHeader{DateTime: "2024-05-06T09:00:00-0400"})

	session, err := recording.Open(path)
	require.NoError(t, err)
	require.Equal(t, "P0001", session.SubjectID)

	date, fromHeader := session.CollectionDate()
	require.True(t, fromHeader)
	require.Equal(t, "2024-05-06", date)

	eeg, err := session.Table("EEG")
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, eeg.Columns)
	require.Equal(t, 4, eeg.Len())

	stim, err := session.Stim()
	require.NoError(t, err)
	seg, err := stim.Segment("Experiment")
	require.NoError(t, err)
	cropped, err := eeg.CropSegment(seg)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 3}, cropped.Data[0])

	_, err = session.Table("ECG")
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestCollectionDateFallsBackToModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub-P0002_mobi.xdf")
	writeSession(t, path, xdf.FileHeader{})

	session, err := recording.Open(path)
	require.NoError(t, err)
	date, fromHeader := session.CollectionDate()
	require.False(t, fromHeader)
	require.Len(t, date, len(recording.DateLayout))
}
