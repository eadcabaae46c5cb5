package modality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"mobiqc/internal/logging"
	"mobiqc/internal/media/ffprobe"
	"mobiqc/internal/services"
)

// WebcamTypes are the stream types of the per-frame timestamp stream the
// camera recorder pushes into the session.
var WebcamTypes = []string{"VideoFrames", "Video", "Webcam"}

// Webcam inspects the session video next to the recording.
type Webcam struct {
	DataDir   string
	VideoGlob string
	FFprobe   string
	Inspect   ffprobe.Inspector
	Logger    *slog.Logger
}

// VideoPattern returns the glob the subject's video must match.
func VideoPattern(dataDir, subject, videoGlob string) string {
	if videoGlob == "" {
		videoGlob = "*.avi"
	}
	return filepath.Join(dataDir, "sub-"+subject, videoGlob)
}

// ResolveVideo returns the single video for subject. Zero matches yield
// *services.NotFoundError and several *services.AmbiguousMatchError.
func (w Webcam) ResolveVideo(subject string) (string, error) {
	return services.ResolveOne("webcam video", VideoPattern(w.DataDir, subject, w.VideoGlob))
}

// ComputeMetrics implements Adapter.
func (w Webcam) ComputeMetrics(ctx context.Context, in Input) (*Metrics, error) {
	video, err := w.ResolveVideo(in.SubjectID)
	if err != nil {
		return nil, err
	}
	inspect := w.Inspect
	if inspect == nil {
		inspect = ffprobe.Inspect
	}
	probe, err := inspect(ctx, w.FFprobe, video)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "webcam", "ffprobe", filepath.Base(video), err)
	}
	if probe.VideoStreamCount() == 0 {
		return nil, services.Wrap(services.ErrValidation, "webcam", "ffprobe", fmt.Sprintf("%s has no video stream", filepath.Base(video)), nil)
	}
	stream, _ := probe.VideoStream()
	duration := probe.DurationSeconds()
	frames := probe.FrameCount()

	m := NewMetrics()
	m.Set("video_file", filepath.Base(video))
	m.Set("codec", stream.CodecName)
	m.Set("width", stream.Width)
	m.Set("height", stream.Height)
	m.Set("duration_s", round(duration, 3))
	m.Set("frame_rate", round(probe.FrameRate(), 3))
	m.Set("n_frames", frames)
	m.Set("has_audio", probe.AudioStreamCount() > 0)
	m.Set("size_mb", round(float64(probe.SizeBytes())/1e6, 2))

	table, err := in.Table(WebcamTypes...)
	var missing *services.NotFoundError
	switch {
	case err == nil:
		recorded := table.Len()
		m.Set("lsl_frames", recorded)
		m.Set("lsl_rate_hz", round(table.SampleRate(), 3))
		m.Set("frame_count_diff", frames-int64(recorded))
		m.Set("dropped_frames", len(table.Gaps()))
	case errors.As(err, &missing):
		logger := w.Logger
		if logger == nil {
			logger = logging.NewNop()
		}
		logger.DebugContext(ctx, "no webcam frame stream in recording", logging.String("pattern", missing.Pattern))
		m.Set("lsl_frames", 0)
		m.Set("lsl_rate_hz", math.NaN())
		m.Set("frame_count_diff", int64(0))
		m.Set("dropped_frames", 0)
	default:
		return nil, err
	}
	return m, nil
}
