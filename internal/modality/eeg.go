package modality

import (
	"context"

	"mobiqc/internal/eeg"
)

// EEG runs the cleaning pipeline and reports its quality summary.
type EEG struct {
	Pipeline *eeg.Pipeline
}

// ComputeMetrics implements Adapter. The opened session is handed to the
// pipeline so a cache miss does not decode the file twice.
func (a EEG) ComputeMetrics(ctx context.Context, in Input) (*Metrics, error) {
	var src eeg.Source
	if in.Session != nil {
		src = in.Session
	}
	result, err := a.Pipeline.RunWith(ctx, in.Path, in.Task, src)
	if err != nil {
		return nil, err
	}
	return eegMetrics(result), nil
}

func eegMetrics(result *eeg.Result) *Metrics {
	vars := result.Vars
	m := NewMetrics()
	m.Set("bad_channels_before", eeg.JoinChannels(vars.BadChannelsBefore))
	m.Set("interpolated_channels", eeg.JoinChannels(vars.InterpolatedChannels))
	m.Set("bad_channels_after", eeg.JoinChannels(vars.BadChannelsAfter))
	if vars.PercentGood != nil {
		m.Set("percent_good", round(*vars.PercentGood, 2))
	}
	m.Set("n_channels", len(result.Raw.Channels))
	m.Set("sfreq", round(result.Raw.SFreq, 3))
	m.Set("duration_s", round(float64(result.Raw.NTimes())/result.Raw.SFreq, 3))
	m.Set("n_blinks", eeg.CountLabel(result.Annotations, eeg.LabelBlink))
	m.Set("n_muscle_segments", eeg.CountLabel(result.Annotations, eeg.LabelMuscle))
	if result.ICA != nil {
		m.Set("ica_n_components", result.ICA.NComponents)
		m.Set("ica_converged", result.ICA.Converged)
	}
	return m
}
