package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDataDir            = "~/mobiqc/data"
	defaultReportPath         = "./CUNY_QC.csv"
	defaultStateDir           = "~/.local/share/mobiqc"
	defaultLogDir             = "~/.local/share/mobiqc/logs"
	defaultTask               = "Experiment"
	defaultVideoGlob          = "*.avi"
	defaultReferenceChannel   = "Cz"
	defaultLineFreq           = 60.0
	defaultNotchFreq          = 60.0
	defaultBandpassLow        = 1.0
	defaultBandpassHigh       = 50.0
	defaultBlinkWindowSeconds = 0.5
	defaultMuscleThreshold    = 3.0
	defaultMuscleMinLength    = 0.1
	defaultMuscleBandLow      = 95.0
	defaultMuscleBandHigh     = 120.0
	defaultICAVariance        = 0.95
	defaultICAMethod          = "fastica"
	defaultICAMaxIter         = 200
	defaultPipelineVersion    = "1"
	defaultAdapterTimeout     = 600
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Modalities lists every modality namespace in report order.
var Modalities = []string{"eeg", "et", "ecg", "eda", "rsp", "mic", "webcam", "behavior"}

var defaultBlinkChannels = []string{"E25", "E8"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			ReportPath: defaultReportPath,
			StateDir:   defaultStateDirPath(),
			LogDir:     defaultLogDir,
		},
		Study: Study{
			Task:      defaultTask,
			VideoGlob: defaultVideoGlob,
		},
		EEG: EEG{
			BlinkChannels:      append([]string(nil), defaultBlinkChannels...),
			ReferenceChannel:   defaultReferenceChannel,
			LineFreq:           defaultLineFreq,
			NotchFreq:          defaultNotchFreq,
			Bandpass:           []float64{defaultBandpassLow, defaultBandpassHigh},
			BlinkWindowSeconds: defaultBlinkWindowSeconds,
			MuscleThreshold:    defaultMuscleThreshold,
			MuscleMinLength:    defaultMuscleMinLength,
			MuscleBand:         []float64{defaultMuscleBandLow, defaultMuscleBandHigh},
			ICAVariance:        defaultICAVariance,
			ICAMethod:          defaultICAMethod,
			ICAMaxIter:         defaultICAMaxIter,
			PipelineVersion:    defaultPipelineVersion,
		},
		Adapters: map[string]Adapter{},
		Tools: Tools{
			FFprobe: "ffprobe",
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultStateDirPath() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "mobiqc")
	}
	return defaultStateDir
}
