package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"mobiqc/internal/services"
)

// Validate ensures the configuration is usable. Failures are tagged with
// services.ErrConfiguration.
func (c *Config) Validate() error {
	for _, check := range []func() error{c.validatePaths, c.validateEEG, c.validateAdapters} {
		if err := check(); err != nil {
			return services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ReportPath) == "" {
		return errors.New("paths.report_path must be set")
	}
	if !strings.HasSuffix(strings.ToLower(c.Paths.ReportPath), ".csv") {
		return fmt.Errorf("paths.report_path must be a .csv file, got %q", c.Paths.ReportPath)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateEEG() error {
	cfg := c.EEG
	if len(cfg.BlinkChannels) != 2 {
		return fmt.Errorf("eeg.blink_channels must name exactly two channels, got %d", len(cfg.BlinkChannels))
	}
	if err := ensurePositiveMap(map[string]float64{
		"eeg.line_freq":            cfg.LineFreq,
		"eeg.notch_freq":           cfg.NotchFreq,
		"eeg.blink_window_seconds": cfg.BlinkWindowSeconds,
		"eeg.muscle_threshold":     cfg.MuscleThreshold,
		"eeg.muscle_min_length":    cfg.MuscleMinLength,
	}); err != nil {
		return err
	}
	if err := validateBand("eeg.bandpass", cfg.Bandpass); err != nil {
		return err
	}
	if err := validateBand("eeg.muscle_band", cfg.MuscleBand); err != nil {
		return err
	}
	if cfg.ICAVariance <= 0 || cfg.ICAVariance > 1 {
		return errors.New("eeg.ica_variance must be in (0, 1]")
	}
	if cfg.ICAMethod != "fastica" {
		return fmt.Errorf("eeg.ica_method %q is not supported (supported: fastica)", cfg.ICAMethod)
	}
	return nil
}

func (c *Config) validateAdapters() error {
	for name := range c.Adapters {
		if !slices.Contains(Modalities, name) {
			return fmt.Errorf("adapters.%s: unknown modality (expected one of %s)", name, strings.Join(Modalities, ", "))
		}
	}
	return nil
}

func validateBand(key string, band []float64) error {
	if len(band) != 2 {
		return fmt.Errorf("%s must contain [low, high]", key)
	}
	if band[0] <= 0 || band[1] <= band[0] {
		return fmt.Errorf("%s must satisfy 0 < low < high, got %v", key, band)
	}
	return nil
}

func ensurePositiveMap(values map[string]float64) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
