package eeg

import (
	"strings"
	"time"
)

// Vars is the quality summary saved beside a cleaned artifact and reported
// under the eeg_ namespace.
type Vars struct {
	BadChannelsBefore    []string  `json:"bad_channels_before"`
	InterpolatedChannels []string  `json:"interpolated_channels"`
	BadChannelsAfter     []string  `json:"bad_channels_after"`
	PercentGood          *float64  `json:"percent_good,omitempty"`
	CacheKey             string    `json:"cache_key"`
	PipelineVersion      string    `json:"pipeline_version"`
	CreatedAt            time.Time `json:"created_at"`
}

func (v *Vars) normalize() {
	v.BadChannelsBefore = nonNil(v.BadChannelsBefore)
	v.InterpolatedChannels = nonNil(v.InterpolatedChannels)
	v.BadChannelsAfter = nonNil(v.BadChannelsAfter)
}

// JoinChannels renders a channel list as one report cell.
func JoinChannels(channels []string) string {
	return strings.Join(channels, ";")
}
