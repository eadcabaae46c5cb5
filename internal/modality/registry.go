package modality

import (
	"fmt"
	"log/slog"
	"time"

	"mobiqc/internal/config"
	"mobiqc/internal/eeg"
	"mobiqc/internal/logging"
)

// BackendBuiltin names the native implementation of a modality.
const BackendBuiltin = "builtin"

// Entry binds an adapter to its report namespace.
type Entry struct {
	Modality string
	// Backend is BackendBuiltin or the external command.
	Backend string
	Adapter Adapter
}

// NewRegistry builds the enabled adapters in report order.
func NewRegistry(cfg *config.Config, logger *slog.Logger) ([]Entry, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	entries := make([]Entry, 0, len(config.Modalities))
	for _, modality := range config.Modalities {
		settings := cfg.Adapter(modality)
		if settings.Disabled {
			logger.Info("modality disabled", logging.String(logging.FieldModality, modality))
			continue
		}
		if settings.Command != "" {
			entries = append(entries, Entry{
				Modality: modality,
				Backend:  settings.Command,
				Adapter:  newExec(cfg, modality, settings, logger),
			})
			continue
		}
		adapter, err := builtin(cfg, modality, logger)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Modality: modality, Backend: BackendBuiltin, Adapter: adapter})
	}
	return entries, nil
}

func newExec(cfg *config.Config, modality string, settings config.Adapter, logger *slog.Logger) Exec {
	adapter := Exec{
		Modality: modality,
		Command:  settings.Command,
		Args:     append([]string(nil), settings.Args...),
		Timeout:  time.Duration(settings.TimeoutSeconds) * time.Second,
		Logger:   logging.NewComponentLogger(logger, "adapter."+modality),
	}
	if modality == "webcam" {
		adapter.Video = newWebcam(cfg, logger).ResolveVideo
	}
	return adapter
}

func newWebcam(cfg *config.Config, logger *slog.Logger) Webcam {
	return Webcam{
		DataDir:   cfg.Paths.DataDir,
		VideoGlob: cfg.Study.VideoGlob,
		FFprobe:   cfg.FFprobeBinary(),
		Logger:    logging.NewComponentLogger(logger, "webcam"),
	}
}

func builtin(cfg *config.Config, modality string, logger *slog.Logger) (Adapter, error) {
	switch modality {
	case "eeg":
		pipeline, err := eeg.NewPipeline(cfg, logger)
		if err != nil {
			return nil, err
		}
		return EEG{Pipeline: pipeline}, nil
	case "et":
		return NewEyeTracking(), nil
	case "ecg":
		return NewECG(), nil
	case "eda":
		return NewEDA(), nil
	case "rsp":
		return NewRSP(), nil
	case "mic":
		return NewMic(), nil
	case "webcam":
		return newWebcam(cfg, logger), nil
	case "behavior":
		return Behavior{}, nil
	default:
		return nil, fmt.Errorf("modality: no built-in adapter for %q", modality)
	}
}
