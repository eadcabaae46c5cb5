package eeg

import (
	"fmt"
	"math"
)

// MicrovoltsToVolts converts imported sample units.
const MicrovoltsToVolts = 1e-6

// Raw is a continuous multichannel signal in volts. Data is channel-major.
// Bads names channels later stages leave out.
type Raw struct {
	Channels    []string
	SFreq       float64
	Data        [][]float64
	Annotations []Annotation
	Bads        []string
	Montage     Montage
}

// NewRaw validates shapes and wraps data without copying.
func NewRaw(channels []string, sfreq float64, data [][]float64) (*Raw, error) {
	if sfreq <= 0 || math.IsNaN(sfreq) || math.IsInf(sfreq, 0) {
		return nil, fmt.Errorf("eeg: invalid sampling rate %g", sfreq)
	}
	if len(channels) != len(data) {
		return nil, fmt.Errorf("eeg: %d channel names for %d channels", len(channels), len(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("eeg: no channels")
	}
	n := len(data[0])
	seen := make(map[string]bool, len(channels))
	for i, ch := range data {
		if len(ch) != n {
			return nil, fmt.Errorf("eeg: channel %s has %d samples, want %d", channels[i], len(ch), n)
		}
		if seen[channels[i]] {
			return nil, fmt.Errorf("eeg: duplicate channel %s", channels[i])
		}
		seen[channels[i]] = true
	}
	return &Raw{Channels: channels, SFreq: sfreq, Data: data}, nil
}

// NTimes returns the number of samples per channel.
func (r *Raw) NTimes() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// Nyquist returns half the sampling rate.
func (r *Raw) Nyquist() float64 {
	return r.SFreq / 2
}

// Index returns the position of the named channel or -1.
func (r *Raw) Index(name string) int {
	for i, ch := range r.Channels {
		if ch == name {
			return i
		}
	}
	return -1
}

// AddChannel appends a channel of matching length.
func (r *Raw) AddChannel(name string, samples []float64) error {
	if r.Index(name) >= 0 {
		return fmt.Errorf("eeg: channel %s already present", name)
	}
	if len(samples) != r.NTimes() {
		return fmt.Errorf("eeg: channel %s has %d samples, want %d", name, len(samples), r.NTimes())
	}
	r.Channels = append(r.Channels, name)
	r.Data = append(r.Data, samples)
	return nil
}

// Clone deep-copies the signal and annotations.
func (r *Raw) Clone() *Raw {
	out := &Raw{
		Channels:    append([]string(nil), r.Channels...),
		SFreq:       r.SFreq,
		Data:        make([][]float64, len(r.Data)),
		Annotations: append([]Annotation(nil), r.Annotations...),
		Bads:        append([]string(nil), r.Bads...),
		Montage:     r.Montage,
	}
	for i, ch := range r.Data {
		out.Data[i] = append([]float64(nil), ch...)
	}
	return out
}

// Scale multiplies every sample in place.
func (r *Raw) Scale(factor float64) {
	for _, ch := range r.Data {
		for i := range ch {
			ch[i] *= factor
		}
	}
}

// Pick returns the channels at the given indexes, sharing sample memory.
func (r *Raw) Pick(indexes []int) *Raw {
	out := &Raw{SFreq: r.SFreq, Montage: r.Montage, Annotations: r.Annotations, Bads: r.Bads}
	for _, idx := range indexes {
		out.Channels = append(out.Channels, r.Channels[idx])
		out.Data = append(out.Data, r.Data[idx])
	}
	return out
}

// Good returns the indexes of channels not listed in Bads.
func (r *Raw) Good() []int {
	return r.Exclude(r.Bads)
}

// Exclude returns the indexes of channels not named in names.
func (r *Raw) Exclude(names []string) []int {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := make([]int, 0, len(r.Channels))
	for i, ch := range r.Channels {
		if !skip[ch] {
			out = append(out, i)
		}
	}
	return out
}
