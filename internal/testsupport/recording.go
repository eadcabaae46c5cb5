package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"mobiqc/internal/recording"
	"mobiqc/internal/xdf"
)

// Stream describes a synthetic numeric stream. Channel c carries a sine at
// (c+1) Hz around an offset of 1.
type Stream struct {
	Name     string
	Type     string
	Rate     float64
	Channels int
	Start    float64
	Seconds  float64
}

// Recording describes a synthetic XDF session.
type Recording struct {
	Header  xdf.FileHeader
	Streams []Stream
	Markers []recording.Marker
}

// DefaultRecording has a 30 s gaze stream and an Experiment segment from
// 5 s to 25 s.
func DefaultRecording() Recording {
	return Recording{
		Header:  xdf.FileHeader{Version: "1.0", DateTime: "2024-03-05T14:30:00-0500"},
		Streams: []Stream{{Name: "Tobii", Type: "Gaze", Rate: 60, Channels: 3, Seconds: 30}},
		Markers: []recording.Marker{
			{Time: 5, Label: "Experiment_start"},
			{Time: 10, Label: "trial"},
			{Time: 15, Label: "trial"},
			{Time: 25, Label: "Experiment_end"},
		},
	}
}

// RecordingPath returns the conventional session path of subject.
func RecordingPath(dataDir, subject string) string {
	name := "sub-" + subject + "_ses-S001_task-CUNY_run-001_mobi.xdf"
	return filepath.Join(dataDir, "sub-"+subject, name)
}

// WriteRecording writes rec to path, creating parent directories.
func WriteRecording(t testing.TB, path string, rec Recording) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w, err := xdf.NewWriter(f, rec.Header)
	if err != nil {
		t.Fatalf("xdf header: %v", err)
	}
	for i, s := range rec.Streams {
		id := uint32(i + 1)
		name := s.Name
		if name == "" {
			name = s.Type
		}
		info := xdf.StreamInfo{
			Name:          name,
			Type:          s.Type,
			ChannelCount:  s.Channels,
			NominalSRate:  s.Rate,
			ChannelFormat: xdf.FormatFloat32,
		}
		if err := w.WriteStreamHeader(id, info); err != nil {
			t.Fatalf("xdf stream header %s: %v", s.Type, err)
		}
		n := int(s.Seconds * s.Rate)
		ts := make([]float64, n)
		data := make([][]float64, s.Channels)
		for c := range data {
			data[c] = make([]float64, n)
		}
		for j := range ts {
			ts[j] = s.Start + float64(j)/s.Rate
			for c := range data {
				data[c][j] = 1 + 0.5*math.Sin(2*math.Pi*float64(c+1)*ts[j])
			}
		}
		if err := w.WriteSamples(id, ts, data); err != nil {
			t.Fatalf("xdf samples %s: %v", s.Type, err)
		}
	}
	if len(rec.Markers) > 0 {
		id := uint32(len(rec.Streams) + 1)
		if err := w.WriteStreamHeader(id, xdf.StreamInfo{
			Name:          "Stim",
			Type:          recording.MarkerStreamType,
			ChannelCount:  1,
			ChannelFormat: xdf.FormatString,
		}); err != nil {
			t.Fatalf("xdf marker header: %v", err)
		}
		ts := make([]float64, len(rec.Markers))
		labels := make([][]string, len(rec.Markers))
		for i, m := range rec.Markers {
			ts[i] = m.Time
			labels[i] = []string{m.Label}
		}
		if err := w.WriteStringSamples(id, ts, labels); err != nil {
			t.Fatalf("xdf markers: %v", err)
		}
	}
}
