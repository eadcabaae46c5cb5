package modality

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mobiqc/internal/config"
	"mobiqc/internal/media/ffprobe"
	"mobiqc/internal/recording"
	"mobiqc/internal/services"
	"mobiqc/internal/xdf"
)

const testRecording = "/data/sub-P1/sub-P1_ses-S001_task-CUNY_run-001_mobi.xdf"

func numericStream(id uint32, streamType string, rate float64, ts []float64, data ...[]float64) *xdf.Stream {
	return &xdf.Stream{
		ID: id,
		Info: xdf.StreamInfo{
			Name:          streamType + "-stream",
			Type:          streamType,
			ChannelCount:  len(data),
			NominalSRate:  rate,
			ChannelFormat: xdf.FormatDouble,
		},
		TimeStamps: ts,
		Data:       data,
	}
}

func markerStream(markers ...recording.Marker) *xdf.Stream {
	s := &xdf.Stream{
		ID:   99,
		Info: xdf.StreamInfo{Name: "PsychoPy", Type: recording.MarkerStreamType, ChannelCount: 1, ChannelFormat: xdf.FormatString},
	}
	for _, m := range markers {
		s.TimeStamps = append(s.TimeStamps, m.Time)
		s.Strings = append(s.Strings, []string{m.Label})
	}
	return s
}

func newInput(t *testing.T, streams ...*xdf.Stream) Input {
	t.Helper()
	file := &xdf.File{Header: xdf.FileHeader{Version: "1.0"}, Streams: streams}
	session := recording.NewSession(testRecording, "P1", file)
	stim, err := session.Stim()
	require.NoError(t, err)
	return Input{Path: testRecording, SubjectID: "P1", Task: "Experiment", Session: session, Stim: stim}
}

func timeline(rate float64, start float64, n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = start + float64(i)/rate
	}
	return ts
}

func value(t *testing.T, m *Metrics, key string) any {
	t.Helper()
	v, ok := m.Get(key)
	require.True(t, ok, "missing metric %q", key)
	return v
}

func TestStreamStats(t *testing.T) {
	var ts []float64
	for i := 0; i < 100; i++ {
		if i >= 50 && i < 55 {
			continue
		}
		ts = append(ts, float64(i)/10)
	}
	n := len(ts)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(2 * i)
	}
	for i := 10; i <= 12; i++ {
		a[i], b[i] = a[9], b[9]
	}
	a[40] = math.NaN()
	table := &recording.Table{Columns: []string{"a", "b"}, TimeStamps: ts, Data: [][]float64{a, b}, NominalRate: 10}

	m := NewMetrics()
	StreamStats(table, m)
	require.Equal(t, 2, value(t, m, "n_channels"))
	require.Equal(t, 95, value(t, m, "n_samples"))
	require.Equal(t, 9.9, value(t, m, "duration_s"))
	require.Equal(t, 10.0, value(t, m, "nominal_rate_hz"))
	require.InDelta(t, 94/9.9, value(t, m, "effective_rate_hz"), 1e-3)
	require.InDelta(t, 94/9.9/10, value(t, m, "rate_ratio"), 1e-4)
	require.InDelta(t, 100.0/190, value(t, m, "missing_pct"), 1e-3)
	require.Equal(t, 1, value(t, m, "n_gaps"))
	require.Equal(t, 0.6, value(t, m, "max_gap_s"))
	require.InDelta(t, 300.0/94, value(t, m, "flat_pct"), 1e-3)

	keys := []string{}
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	require.Equal(t, []string{"n_channels", "n_samples", "duration_s", "nominal_rate_hz", "effective_rate_hz",
		"rate_ratio", "missing_pct", "n_gaps", "max_gap_s", "flat_pct"}, keys)
}

func TestHeartMetrics(t *testing.T) {
	const fs = 250.0
	rng := rand.New(rand.NewPCG(1, 1))
	ts := timeline(fs, 0, int(60*fs))
	x := make([]float64, len(ts))
	for i, tt := range ts {
		v := 0.2*math.Sin(2*math.Pi*0.3*tt) + 0.02*rng.NormFloat64()
		for beat := 0.5; beat < 60; beat += 60.0 / 72 {
			d := (tt - beat) / 0.01
			v += math.Exp(-0.5 * d * d)
		}
		x[i] = v
	}
	m := NewMetrics()
	heartMetrics(&recording.Table{Columns: []string{"ECG"}, TimeStamps: ts, Data: [][]float64{x}, NominalRate: fs}, m)

	require.InDelta(t, 72, value(t, m, "heart_rate_bpm"), 1)
	beats := value(t, m, "n_beats").(int)
	require.GreaterOrEqual(t, beats, 70)
	require.LessOrEqual(t, beats, 73)
	require.Equal(t, true, value(t, m, "hr_plausible"))
}

func TestBreathingMetrics(t *testing.T) {
	const fs = 25.0
	ts := timeline(fs, 0, int(120*fs))
	x := make([]float64, len(ts))
	for i, tt := range ts {
		x[i] = math.Sin(2 * math.Pi * 0.25 * tt)
	}
	m := NewMetrics()
	breathingMetrics(&recording.Table{Columns: []string{"RSP"}, TimeStamps: ts, Data: [][]float64{x}, NominalRate: fs}, m)
	require.InDelta(t, 15, value(t, m, "breathing_rate_bpm"), 0.5)
	require.Greater(t, value(t, m, "band_power_ratio").(float64), 0.9)
}

func TestGazeMetrics(t *testing.T) {
	const fs = 100.0
	n := 1000
	ts := timeline(fs, 0, n)
	x := make([]float64, n)
	y := make([]float64, n)
	pupil := make([]float64, n)
	for i := range x {
		x[i], y[i], pupil[i] = 0.5, 0.4, 3
		if i >= 200 && i < 300 {
			x[i], y[i], pupil[i] = 0, 0, 0
		}
	}
	m := NewMetrics()
	gazeMetrics(&recording.Table{Columns: []string{"x", "y", "pupil_left"}, TimeStamps: ts, Data: [][]float64{x, y, pupil}, NominalRate: fs}, m)
	require.Equal(t, 90.0, value(t, m, "valid_pct"))
	require.Equal(t, 1, value(t, m, "n_dropouts"))
	require.Equal(t, 1.0, value(t, m, "longest_dropout_s"))
	require.Equal(t, 3.0, value(t, m, "pupil_mean"))
}

func TestAudioMetrics(t *testing.T) {
	const fs = 1000.0
	n := int(10 * fs)
	ts := timeline(fs, 0, n)
	x := make([]float64, n)
	for i := 0; i < n/2; i++ {
		x[i] = math.Max(-0.5, math.Min(0.5, 0.8*math.Sin(2*math.Pi*10*ts[i])))
	}
	m := NewMetrics()
	audioMetrics(&recording.Table{Columns: []string{"mic"}, TimeStamps: ts, Data: [][]float64{x}, NominalRate: fs}, m)
	require.Equal(t, 0.5, value(t, m, "peak_amplitude"))
	require.Greater(t, value(t, m, "clipping_pct").(float64), 10.0)
	require.InDelta(t, 50, value(t, m, "silence_pct"), 1)
}

func segmentMarkers(start, end float64) *xdf.Stream {
	return markerStream(
		recording.Marker{Time: start, Label: "Experiment_start"},
		recording.Marker{Time: start + 1, Label: "trial"},
		recording.Marker{Time: start + 2, Label: "trial"},
		recording.Marker{Time: end, Label: "Experiment_end"},
	)
}

func TestStreamAdapterCropsToSegment(t *testing.T) {
	ts := timeline(100, 0, 3000)
	x := make([]float64, len(ts))
	in := newInput(t, numericStream(1, "EDA", 100, ts, x), segmentMarkers(5, 15))

	m, err := NewEDA().ComputeMetrics(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1001, value(t, m, "n_samples"))
	require.Equal(t, 10.0, value(t, m, "duration_s"))
	require.Equal(t, 0, value(t, m, "n_scr"))

	_, err = NewECG().ComputeMetrics(context.Background(), in)
	require.True(t, errors.Is(err, services.ErrNotFound), "got %v", err)
}

func TestBehaviorMetrics(t *testing.T) {
	in := newInput(t, segmentMarkers(5, 15))
	m, err := Behavior{}.ComputeMetrics(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 4, value(t, m, "n_markers"))
	require.Equal(t, 3, value(t, m, "n_unique_labels"))
	require.Equal(t, 10.0, value(t, m, "task_duration_s"))
	require.Equal(t, 4, value(t, m, "n_markers_in_task"))
	require.InDelta(t, 10.0/3, value(t, m, "mean_marker_interval_s"), 1e-3)
	require.Equal(t, 1, value(t, m, "n_task_starts"))
}

const probeJSON = `{"streams":[{"index":0,"codec_type":"video","codec_name":"mjpeg","width":640,"height":480,"avg_frame_rate":"30/1","nb_frames":"300"}],"format":{"duration":"10.0","size":"2000000"}}`

func webcamFixture(t *testing.T, videos ...string) (Webcam, *int) {
	t.Helper()
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "sub-P1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range videos {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("video"), 0o644))
	}
	calls := 0
	return Webcam{
		DataDir:   dataDir,
		VideoGlob: "*.avi",
		Inspect: func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
			calls++
			if filepath.Ext(path) != ".avi" {
				return ffprobe.Result{}, errors.New("unexpected file")
			}
			return ffprobe.Parse([]byte(probeJSON))
		},
	}, &calls
}

func TestWebcamMetrics(t *testing.T) {
	webcam, calls := webcamFixture(t, "sub-P1_webcam.avi")
	frames := timeline(30, 5, 295)
	in := newInput(t, numericStream(2, "VideoFrames", 30, frames, make([]float64, len(frames))), segmentMarkers(5, 15))

	m, err := webcam.ComputeMetrics(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, *calls)
	require.Equal(t, "sub-P1_webcam.avi", value(t, m, "video_file"))
	require.Equal(t, 640, value(t, m, "width"))
	require.Equal(t, int64(300), value(t, m, "n_frames"))
	require.Equal(t, 30.0, value(t, m, "frame_rate"))
	require.Equal(t, 295, value(t, m, "lsl_frames"))
	require.Equal(t, int64(5), value(t, m, "frame_count_diff"))
	require.Equal(t, false, value(t, m, "has_audio"))
}

func TestWebcamResolution(t *testing.T) {
	in := newInput(t, segmentMarkers(5, 15))

	missing, calls := webcamFixture(t)
	_, err := missing.ComputeMetrics(context.Background(), in)
	var notFound *services.NotFoundError
	require.True(t, errors.As(err, &notFound), "got %v", err)
	require.Zero(t, *calls)

	ambiguous, calls := webcamFixture(t, "a.avi", "b.avi", "notes.txt")
	_, err = ambiguous.ComputeMetrics(context.Background(), in)
	var multi *services.AmbiguousMatchError
	require.True(t, errors.As(err, &multi), "got %v", err)
	require.Len(t, multi.Matches, 2)
	require.Zero(t, *calls)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adapter.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExecAdapter(t *testing.T) {
	script := writeScript(t, `printf '{"zeta": 1.5, "path": "%s", "task": "%s", "ok": true, "note": null}' "$2" "$4"`)
	in := Input{Path: testRecording, SubjectID: "P1", Task: "Experiment"}

	m, err := Exec{Modality: "et", Command: script, Args: []string{"--flag"}}.ComputeMetrics(context.Background(), in)
	require.NoError(t, err)
	var keys []string
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	require.Equal(t, []string{"zeta", "path", "task", "ok", "note"}, keys)
	require.Equal(t, 1.5, value(t, m, "zeta"))
	require.Equal(t, testRecording, value(t, m, "path"))
	require.Equal(t, "Experiment", value(t, m, "task"))
}

func TestExecAdapterPassesVideo(t *testing.T) {
	script := writeScript(t, `printf '{"video": "%s"}' "$5"`)
	adapter := Exec{
		Modality: "webcam",
		Command:  script,
		Video:    func(subject string) (string, error) { return "/data/sub-" + subject + "/cam.avi", nil },
	}
	m, err := adapter.ComputeMetrics(context.Background(), Input{Path: testRecording, SubjectID: "P1", Task: "Experiment"})
	require.NoError(t, err)
	require.Equal(t, "/data/sub-P1/cam.avi", value(t, m, "video"))
}

func TestExecAdapterFailures(t *testing.T) {
	in := Input{Path: testRecording, SubjectID: "P1", Task: "Experiment"}

	failing := writeScript(t, "echo boom >&2\nexit 3")
	_, err := Exec{Modality: "ecg", Command: failing}.ComputeMetrics(context.Background(), in)
	require.True(t, errors.Is(err, services.ErrExternalTool), "got %v", err)
	require.ErrorContains(t, err, "boom")

	slow := writeScript(t, "exec sleep 5")
	_, err = Exec{Modality: "ecg", Command: slow, Timeout: 100 * time.Millisecond}.ComputeMetrics(context.Background(), in)
	require.True(t, errors.Is(err, services.ErrTimeout), "got %v", err)

	nested := writeScript(t, `echo '{"a": [1, 2]}'`)
	_, err = Exec{Modality: "ecg", Command: nested}.ComputeMetrics(context.Background(), in)
	require.True(t, errors.Is(err, services.ErrValidation), "got %v", err)

	empty := writeScript(t, "true")
	_, err = Exec{Modality: "ecg", Command: empty}.ComputeMetrics(context.Background(), in)
	require.True(t, errors.Is(err, services.ErrValidation), "got %v", err)
}

func TestNewRegistry(t *testing.T) {
	cfg := config.Default()
	entries, err := NewRegistry(&cfg, nil)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Modality)
		require.Equal(t, BackendBuiltin, e.Backend)
	}
	require.Equal(t, config.Modalities, names)

	cfg.Adapters = map[string]config.Adapter{
		"et":  {Command: "python3", Args: []string{"-m", "et_qc"}, TimeoutSeconds: 30},
		"mic": {Disabled: true},
	}
	entries, err = NewRegistry(&cfg, nil)
	require.NoError(t, err)
	require.Len(t, entries, len(config.Modalities)-1)
	require.Equal(t, "et", entries[1].Modality)
	require.Equal(t, "python3", entries[1].Backend)
	ex, ok := entries[1].Adapter.(Exec)
	require.True(t, ok)
	require.Equal(t, 30*time.Second, ex.Timeout)
	require.Equal(t, []string{"-m", "et_qc"}, ex.Args)
	for _, e := range entries {
		require.NotEqual(t, "mic", e.Modality)
	}
}
