package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mobiqc/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	ReportPath string `toml:"report_path"`
	CacheDir   string `toml:"cache_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Study contains per-study conventions shared by every modality.
type Study struct {
	Task      string `toml:"task"`
	VideoGlob string `toml:"video_glob"`
}

// EEG contains configuration for the EEG cleaning pipeline.
type EEG struct {
	BlinkChannels      []string  `toml:"blink_channels"`
	ReferenceChannel   string    `toml:"reference_channel"`
	MontageFile        string    `toml:"montage_file"`
	LineFreq           float64   `toml:"line_freq"`
	NotchFreq          float64   `toml:"notch_freq"`
	Bandpass           []float64 `toml:"bandpass"`
	BlinkWindowSeconds float64   `toml:"blink_window_seconds"`
	MuscleThreshold    float64   `toml:"muscle_threshold"`
	MuscleMinLength    float64   `toml:"muscle_min_length"`
	MuscleBand         []float64 `toml:"muscle_band"`
	ICAVariance        float64   `toml:"ica_variance"`
	ICAMethod          string    `toml:"ica_method"`
	ICAMaxIter         int       `toml:"ica_max_iter"`
	PipelineVersion    string    `toml:"pipeline_version"`
}

// Adapter configures how one modality computes its metrics. When Command is
// set the modality is delegated to that executable instead of the built-in
// implementation.
type Adapter struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Disabled       bool     `toml:"disabled"`
}

// Tools contains external binary names.
type Tools struct {
	FFprobe string `toml:"ffprobe"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mobiqc.
//
// Configuration sections by subsystem:
//   - Paths: data directory, report ledger, caches, state and logs
//   - Study: task label and companion file patterns
//   - EEG: cleaning, annotation and decomposition parameters
//   - Adapters: per-modality external command overrides
//   - Tools: external binaries
//   - Logging: log format and level
type Config struct {
	Paths    Paths              `toml:"paths"`
	Study    Study              `toml:"study"`
	EEG      EEG                `toml:"eeg"`
	Adapters map[string]Adapter `toml:"adapters"`
	Tools    Tools              `toml:"tools"`
	Logging  Logging            `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mobiqc/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "normalize", resolvedPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/mobiqc/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mobiqc.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories mobiqc writes into. The data
// directory is read-only input and is never created.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Paths.ReportPath)}
	if c.Paths.CacheDir != "" {
		dirs = append(dirs, c.Paths.CacheDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable name used for video inspection.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.Tools.FFprobe) == "" {
		return "ffprobe"
	}
	return c.Tools.FFprobe
}

// Adapter returns the adapter settings for a modality. Missing entries yield
// the zero value, which selects the built-in implementation.
func (c *Config) Adapter(modality string) Adapter {
	if c.Adapters == nil {
		return Adapter{}
	}
	return c.Adapters[strings.ToLower(strings.TrimSpace(modality))]
}

// RunLogPath returns the location of the run history database.
func (c *Config) RunLogPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
