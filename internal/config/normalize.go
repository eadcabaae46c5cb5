package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStudy()
	if err := c.normalizeEEG(); err != nil {
		return err
	}
	c.normalizeAdapters()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("MOBIQC_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("MOBIQC_REPORT_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Paths.ReportPath = strings.TrimSpace(value)
	}

	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportPath) == "" {
		c.Paths.ReportPath = defaultReportPath
	}
	if c.Paths.ReportPath, err = expandPath(strings.TrimSpace(c.Paths.ReportPath)); err != nil {
		return fmt.Errorf("paths.report_path: %w", err)
	}
	// An empty cache dir keeps cleaned artifacts next to each recording.
	if c.Paths.CacheDir, err = expandPath(strings.TrimSpace(c.Paths.CacheDir)); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDirPath()
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStudy() {
	c.Study.Task = strings.TrimSpace(c.Study.Task)
	if c.Study.Task == "" {
		c.Study.Task = defaultTask
	}
	c.Study.VideoGlob = strings.TrimSpace(c.Study.VideoGlob)
	if c.Study.VideoGlob == "" {
		c.Study.VideoGlob = defaultVideoGlob
	}
}

func (c *Config) normalizeEEG() error {
	channels := make([]string, 0, len(c.EEG.BlinkChannels))
	for _, ch := range c.EEG.BlinkChannels {
		if trimmed := strings.TrimSpace(ch); trimmed != "" {
			channels = append(channels, trimmed)
		}
	}
	if len(channels) == 0 {
		channels = append(channels, defaultBlinkChannels...)
	}
	c.EEG.BlinkChannels = channels

	c.EEG.ReferenceChannel = strings.TrimSpace(c.EEG.ReferenceChannel)
	if c.EEG.ReferenceChannel == "" {
		c.EEG.ReferenceChannel = defaultReferenceChannel
	}
	if c.EEG.LineFreq == 0 {
		c.EEG.LineFreq = defaultLineFreq
	}
	if c.EEG.NotchFreq == 0 {
		c.EEG.NotchFreq = c.EEG.LineFreq
	}
	if len(c.EEG.Bandpass) == 0 {
		c.EEG.Bandpass = []float64{defaultBandpassLow, defaultBandpassHigh}
	}
	if len(c.EEG.MuscleBand) == 0 {
		c.EEG.MuscleBand = []float64{defaultMuscleBandLow, defaultMuscleBandHigh}
	}
	if c.EEG.BlinkWindowSeconds == 0 {
		c.EEG.BlinkWindowSeconds = defaultBlinkWindowSeconds
	}
	if c.EEG.MuscleThreshold == 0 {
		c.EEG.MuscleThreshold = defaultMuscleThreshold
	}
	if c.EEG.MuscleMinLength == 0 {
		c.EEG.MuscleMinLength = defaultMuscleMinLength
	}
	if c.EEG.ICAVariance == 0 {
		c.EEG.ICAVariance = defaultICAVariance
	}
	c.EEG.ICAMethod = strings.ToLower(strings.TrimSpace(c.EEG.ICAMethod))
	if c.EEG.ICAMethod == "" {
		c.EEG.ICAMethod = defaultICAMethod
	}
	if c.EEG.ICAMaxIter <= 0 {
		c.EEG.ICAMaxIter = defaultICAMaxIter
	}
	c.EEG.PipelineVersion = strings.TrimSpace(c.EEG.PipelineVersion)
	if c.EEG.PipelineVersion == "" {
		c.EEG.PipelineVersion = defaultPipelineVersion
	}
	var err error
	if c.EEG.MontageFile, err = expandPath(strings.TrimSpace(c.EEG.MontageFile)); err != nil {
		return fmt.Errorf("eeg.montage_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeAdapters() {
	normalized := make(map[string]Adapter, len(c.Adapters))
	for name, adapter := range c.Adapters {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		adapter.Command = strings.TrimSpace(adapter.Command)
		if adapter.TimeoutSeconds <= 0 {
			adapter.TimeoutSeconds = defaultAdapterTimeout
		}
		normalized[key] = adapter
	}
	c.Adapters = normalized
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
