package xdf

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type fileHeaderXML struct {
	XMLName  xml.Name `xml:"info"`
	Version  string   `xml:"version"`
	DateTime string   `xml:"datetime"`
}

type channelXML struct {
	Label string `xml:"label"`
	Unit  string `xml:"unit,omitempty"`
	Type  string `xml:"type,omitempty"`
}

type streamInfoXML struct {
	XMLName       xml.Name     `xml:"info"`
	Name          string       `xml:"name"`
	Type          string       `xml:"type"`
	ChannelCount  int          `xml:"channel_count"`
	NominalSRate  float64      `xml:"nominal_srate"`
	ChannelFormat string       `xml:"channel_format"`
	SourceID      string       `xml:"source_id"`
	Channels      []channelXML `xml:"desc>channels>channel"`
}

func parseFileHeader(payload []byte) (FileHeader, error) {
	var raw fileHeaderXML
	if err := xml.Unmarshal(payload, &raw); err != nil {
		return FileHeader{}, fmt.Errorf("xdf: decode file header: %w", err)
	}
	return FileHeader{
		Version:  strings.TrimSpace(raw.Version),
		DateTime: strings.TrimSpace(raw.DateTime),
	}, nil
}

func parseStreamInfo(payload []byte) (StreamInfo, error) {
	var raw streamInfoXML
	if err := xml.Unmarshal(payload, &raw); err != nil {
		return StreamInfo{}, fmt.Errorf("xdf: decode stream header: %w", err)
	}
	info := StreamInfo{
		Name:          strings.TrimSpace(raw.Name),
		Type:          strings.TrimSpace(raw.Type),
		ChannelCount:  raw.ChannelCount,
		NominalSRate:  raw.NominalSRate,
		ChannelFormat: strings.ToLower(strings.TrimSpace(raw.ChannelFormat)),
		SourceID:      strings.TrimSpace(raw.SourceID),
	}
	if info.ChannelCount <= 0 {
		return StreamInfo{}, fmt.Errorf("xdf: stream %q declares %d channels", info.Name, raw.ChannelCount)
	}
	if _, err := formatSize(info.ChannelFormat); err != nil {
		return StreamInfo{}, err
	}
	for _, ch := range raw.Channels {
		info.Channels = append(info.Channels, Channel{
			Label: strings.TrimSpace(ch.Label),
			Unit:  strings.TrimSpace(ch.Unit),
			Type:  strings.TrimSpace(ch.Type),
		})
	}
	return info, nil
}

func marshalFileHeader(h FileHeader) ([]byte, error) {
	version := h.Version
	if version == "" {
		version = "1.0"
	}
	body, err := xml.Marshal(fileHeaderXML{Version: version, DateTime: h.DateTime})
	if err != nil {
		return nil, fmt.Errorf("xdf: encode file header: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func marshalStreamInfo(info StreamInfo) ([]byte, error) {
	raw := streamInfoXML{
		Name:          info.Name,
		Type:          info.Type,
		ChannelCount:  info.ChannelCount,
		NominalSRate:  info.NominalSRate,
		ChannelFormat: info.ChannelFormat,
		SourceID:      info.SourceID,
	}
	for _, ch := range info.Channels {
		raw.Channels = append(raw.Channels, channelXML(ch))
	}
	body, err := xml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("xdf: encode stream header: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
