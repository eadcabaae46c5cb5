package modality

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"mobiqc/internal/logging"
	"mobiqc/internal/services"
)

// Exec delegates a modality to an external command. The command receives
// Args, the recording path and "--task <task>", plus "--video <file>" when
// Video resolves one, and must print one JSON object of scalar metrics on
// stdout.
type Exec struct {
	Modality string
	Command  string
	Args     []string
	Timeout  time.Duration
	// Video, when set, resolves the subject's video for the command.
	Video  func(subject string) (string, error)
	Logger *slog.Logger
}

// ComputeMetrics implements Adapter.
func (e Exec) ComputeMetrics(ctx context.Context, in Input) (*Metrics, error) {
	logger := e.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	args := append(append([]string(nil), e.Args...), in.Path, "--task", in.Task)
	if e.Video != nil {
		video, err := e.Video(in.SubjectID)
		if err != nil {
			return nil, err
		}
		args = append(args, "--video", video)
	}

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	started := time.Now()
	logger.DebugContext(ctx, "running adapter command",
		logging.String("command", e.Command),
		logging.Strings("args", args))
	err := cmd.Run()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, services.Wrap(services.ErrTimeout, e.Modality, "run adapter", fmt.Sprintf("%s exceeded %s", e.Command, e.Timeout), err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		return nil, services.Wrap(services.ErrExternalTool, e.Modality, "run adapter", fmt.Sprintf("%s: %s", e.Command, detail), err)
	}
	logger.DebugContext(ctx, "adapter command finished",
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("stdout_bytes", stdout.Len()))

	metrics, err := decodeMetrics(stdout.Bytes())
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, e.Modality, "decode adapter output", e.Command, err)
	}
	return metrics, nil
}

// decodeMetrics parses one JSON object, keeping key order, and rejects
// nested values.
func decodeMetrics(payload []byte) (*Metrics, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, errors.New("expected a JSON object on stdout")
	}
	m := NewMetrics()
	if err := m.UnmarshalJSON(payload); err != nil {
		return nil, err
	}
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		switch pair.Value.(type) {
		case nil, bool, float64, string:
		default:
			return nil, fmt.Errorf("metric %q is not a scalar", pair.Key)
		}
	}
	return m, nil
}
