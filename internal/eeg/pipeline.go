package eeg

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"mobiqc/internal/config"
	"mobiqc/internal/dsp"
	"mobiqc/internal/logging"
	"mobiqc/internal/recording"
)

// StreamTypes are the XDF stream types accepted as the EEG stream.
var StreamTypes = []string{"EEG"}

// Source supplies the EEG table and the stimulus markers on a cache miss.
// *recording.Session implements it.
type Source interface {
	Table(types ...string) (*recording.Table, error)
	Stim() (recording.StimTable, error)
}

// Pipeline runs the EEG cleaning and quality stages for one recording.
type Pipeline struct {
	Cache            *ArtifactCache
	Referencer       Referencer
	Blinks           Detector
	Muscle           Detector
	Decomposer       Decomposer
	NotchFreq        float64
	Bandpass         [2]float64
	ReferenceChannel string
	Montage          Montage
	Version          string
	Open             func(path string) (Source, error)
	Logger           *slog.Logger
}

// Result is everything one run produces.
type Result struct {
	Vars        Vars
	Raw         *Raw
	ICA         *ICA
	Frame       *recording.Table
	Annotations []Annotation
	CacheHit    bool
}

// NewPipeline wires the native stages from configuration.
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	logger = logging.NewComponentLogger(logger, "eeg")
	var montage Montage
	if cfg.EEG.MontageFile != "" {
		loaded, err := LoadMontage(cfg.EEG.MontageFile)
		if err != nil {
			return nil, err
		}
		montage = loaded
	}
	if cfg.EEG.ICAMethod != MethodFastICA {
		return nil, fmt.Errorf("eeg: unsupported ica method %q", cfg.EEG.ICAMethod)
	}
	return &Pipeline{
		Cache: &ArtifactCache{Dir: cfg.Paths.CacheDir, Logger: logger},
		Referencer: &RobustReference{
			LineFreq: cfg.EEG.LineFreq,
			Noisy:    DefaultNoisyOptions(),
			Logger:   logger,
		},
		Blinks: BlinkDetector{
			Channels: cfg.EEG.BlinkChannels,
			Window:   cfg.EEG.BlinkWindowSeconds,
		},
		Muscle: MuscleDetector{
			Threshold:     cfg.EEG.MuscleThreshold,
			MinLengthGood: cfg.EEG.MuscleMinLength,
			Low:           cfg.EEG.MuscleBand[0],
			High:          cfg.EEG.MuscleBand[1],
			Logger:        logger,
		},
		Decomposer: FastICA{
			Variance: cfg.EEG.ICAVariance,
			MaxIter:  cfg.EEG.ICAMaxIter,
			Logger:   logger,
		},
		NotchFreq:        cfg.EEG.NotchFreq,
		Bandpass:         [2]float64{cfg.EEG.Bandpass[0], cfg.EEG.Bandpass[1]},
		ReferenceChannel: cfg.EEG.ReferenceChannel,
		Montage:          montage,
		Version:          cfg.EEG.PipelineVersion,
		Logger:           logger,
	}, nil
}

// Run opens the recording only if the cache misses.
func (p *Pipeline) Run(ctx context.Context, path, task string) (*Result, error) {
	return p.RunWith(ctx, path, task, nil)
}

// RunWith is Run with an already opened source; src may be nil.
func (p *Pipeline) RunWith(ctx context.Context, path, task string, src Source) (*Result, error) {
	logger := p.logger()
	subject, err := recording.ParseSubjectID(path)
	if err != nil {
		return nil, err
	}
	key, err := CacheKey(path, p.Version)
	if err != nil {
		return nil, err
	}

	art, hit, err := p.Cache.Load(subject, path, key)
	if err != nil {
		return nil, err
	}
	if hit {
		logger.InfoContext(ctx, "reusing cleaned artifact", logging.String("path", p.Cache.SignalPath(subject, path)))
		logVars(ctx, logger, art.Vars)
	} else {
		if src == nil {
			if src, err = p.open(path); err != nil {
				return nil, err
			}
		}
		art, err = p.fresh(ctx, src, task, key)
		if err != nil {
			return nil, err
		}
		if err := p.Cache.Store(subject, path, art); err != nil {
			return nil, err
		}
	}
	raw := art.Raw

	blinks, err := p.Blinks.Detect(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("eeg: blink detection: %w", err)
	}
	muscle, err := p.Muscle.Detect(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("eeg: muscle detection: %w", err)
	}
	raw.Annotations = MergeAnnotations(blinks, muscle, raw.Annotations)

	percent := PercentGood(raw.NTimes(), raw.SFreq, raw.Annotations)
	logger.InfoContext(ctx, fmt.Sprintf("Percent Good Data: %.2f%%", percent),
		logging.Int("blinks", len(blinks)),
		logging.Int("muscle_segments", len(muscle)))
	vars := art.Vars
	vars.PercentGood = &percent
	if !hit {
		if err := p.Cache.SaveVars(subject, path, vars); err != nil {
			return nil, err
		}
	}

	if err := p.filter(ctx, raw); err != nil {
		return nil, err
	}

	ica, err := p.Decomposer.Fit(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("eeg: decomposition: %w", err)
	}

	return &Result{
		Vars:        vars,
		Raw:         raw,
		ICA:         ica,
		Frame:       frame(raw, art.TimeStamps),
		Annotations: raw.Annotations,
		CacheHit:    hit,
	}, nil
}

func (p *Pipeline) fresh(ctx context.Context, src Source, task, key string) (*Artifact, error) {
	logger := p.logger()
	table, err := src.Table(StreamTypes...)
	if err != nil {
		return nil, err
	}
	stim, err := src.Stim()
	if err != nil {
		return nil, err
	}
	segment, err := stim.Segment(task)
	if err != nil {
		return nil, err
	}
	cropped, err := table.CropSegment(segment)
	if err != nil {
		return nil, err
	}
	if cropped.Len() < 2 {
		return nil, fmt.Errorf("eeg: %s segment holds %d samples", task, cropped.Len())
	}
	timestamps := append([]float64(nil), cropped.TimeStamps...)

	channels := make([]string, cropped.Width())
	for i := range channels {
		channels[i] = fmt.Sprintf("E%d", i+1)
	}
	rate := cropped.SampleRate()
	if nominal := cropped.NominalRate; nominal > 0 && math.Abs(rate-nominal) <= nominal*1e-6 {
		rate = nominal
	}
	raw, err := NewRaw(channels, rate, cropped.Data)
	if err != nil {
		return nil, err
	}
	raw.Scale(MicrovoltsToVolts)
	if err := raw.AddChannel(p.ReferenceChannel, make([]float64, raw.NTimes())); err != nil {
		return nil, err
	}
	if p.Montage != nil {
		missing := p.Montage.Apply(raw)
		logger.DebugContext(ctx, "montage applied", logging.Int("missing_sensors", len(missing)))
	}
	logger.InfoContext(ctx, "referencing eeg",
		logging.Int("channels", len(raw.Channels)),
		logging.Float64("sfreq", raw.SFreq),
		logging.Float64("segment_seconds", segment.Duration()))

	ref, err := p.Referencer.Reference(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("eeg: robust reference: %w", err)
	}
	cleaned := ref.Raw
	cleaned.Bads = append([]string(nil), ref.BadAfter...)
	vars := Vars{
		BadChannelsBefore:    ref.BadBefore,
		InterpolatedChannels: ref.Interpolated,
		BadChannelsAfter:     ref.BadAfter,
		CacheKey:             key,
		PipelineVersion:      p.Version,
		CreatedAt:            time.Now().UTC(),
	}
	vars.normalize()
	logVars(ctx, logger, vars)
	return &Artifact{Raw: cleaned, TimeStamps: timestamps, Vars: vars}, nil
}

// filter applies the notch and then the band-pass in place. Cut-offs at or
// above Nyquist are skipped with a warning.
func (p *Pipeline) filter(ctx context.Context, raw *Raw) error {
	logger := p.logger()
	var chain dsp.Cascade
	if p.NotchFreq > 0 {
		if p.NotchFreq < raw.Nyquist() {
			notch, err := dsp.Notch(p.NotchFreq, raw.SFreq, 30)
			if err != nil {
				return fmt.Errorf("eeg: notch filter: %w", err)
			}
			chain = append(chain, notch...)
		} else {
			logging.WarnWithContext(ctx, logger, "notch frequency above nyquist; skipped",
				"eeg_filter_skipped", logging.Float64("freq", p.NotchFreq), logging.Float64("nyquist", raw.Nyquist()))
		}
	}
	low, high := p.Bandpass[0], p.Bandpass[1]
	if low > 0 && low < raw.Nyquist() {
		hp, err := dsp.Highpass(low, raw.SFreq, 4)
		if err != nil {
			return fmt.Errorf("eeg: high-pass filter: %w", err)
		}
		chain = append(chain, hp...)
	}
	if high > 0 {
		if high < raw.Nyquist() {
			lp, err := dsp.Lowpass(high, raw.SFreq, 4)
			if err != nil {
				return fmt.Errorf("eeg: low-pass filter: %w", err)
			}
			chain = append(chain, lp...)
		} else {
			logging.WarnWithContext(ctx, logger, "low-pass cut-off above nyquist; skipped",
				"eeg_filter_skipped", logging.Float64("freq", high), logging.Float64("nyquist", raw.Nyquist()))
		}
	}
	return applyFilter(ctx, raw, chain)
}

func (p *Pipeline) open(path string) (Source, error) {
	if p.Open != nil {
		return p.Open(path)
	}
	session, err := recording.Open(path)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.NewNop()
	}
	return p.Logger
}

func logVars(ctx context.Context, logger *slog.Logger, vars Vars) {
	logger.InfoContext(ctx, "eeg channel quality",
		logging.Strings("bad_channels_before", vars.BadChannelsBefore),
		logging.Strings("interpolated_channels", vars.InterpolatedChannels),
		logging.Strings("bad_channels_after", vars.BadChannelsAfter))
}

// frame flattens raw into a table in microvolts with the original
// timestamps reattached.
func frame(raw *Raw, timestamps []float64) *recording.Table {
	data := make([][]float64, len(raw.Data))
	for i, ch := range raw.Data {
		data[i] = make([]float64, len(ch))
		for t, v := range ch {
			data[i][t] = v / MicrovoltsToVolts
		}
	}
	return &recording.Table{
		Name:        "EEG",
		Columns:     append([]string(nil), raw.Channels...),
		TimeStamps:  append([]float64(nil), timestamps...),
		Data:        data,
		NominalRate: raw.SFreq,
	}
}
