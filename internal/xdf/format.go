package xdf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const magic = "XDF:"

// Chunk tags defined by the XDF 1.0 specification.
const (
	tagFileHeader   uint16 = 1
	tagStreamHeader uint16 = 2
	tagSamples      uint16 = 3
	tagClockOffset  uint16 = 4
	tagBoundary     uint16 = 5
	tagStreamFooter uint16 = 6
)

// Channel formats.
const (
	FormatFloat32 = "float32"
	FormatDouble  = "double64"
	FormatString  = "string"
	FormatInt8    = "int8"
	FormatInt16   = "int16"
	FormatInt32   = "int32"
	FormatInt64   = "int64"
)

// ErrNotXDF reports input that does not start with the XDF magic code.
var ErrNotXDF = errors.New("xdf: missing magic code")

// FileHeader is the decoded FileHeader chunk.
type FileHeader struct {
	Version  string
	DateTime string
}

// Time parses the recorder's datetime field. LabRecorder writes
// "2006-01-02T15:04:05-0700"; RFC 3339 is accepted too.
func (h FileHeader) Time() (time.Time, error) {
	value := strings.TrimSpace(h.DateTime)
	if value == "" {
		return time.Time{}, errors.New("xdf: file header has no datetime")
	}
	layouts := []string{
		"2006-01-02T15:04:05-0700",
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("xdf: unrecognized datetime %q", value)
}

// Channel describes one channel from the stream description.
type Channel struct {
	Label string
	Unit  string
	Type  string
}

// StreamInfo is the decoded StreamHeader XML.
type StreamInfo struct {
	Name          string
	Type          string
	ChannelCount  int
	NominalSRate  float64
	ChannelFormat string
	SourceID      string
	Channels      []Channel
}

// IsString reports whether samples carry string values.
func (i StreamInfo) IsString() bool {
	return i.ChannelFormat == FormatString
}

// Labels returns channel labels, falling back to 1-based indexes when the
// description omits them.
func (i StreamInfo) Labels() []string {
	labels := make([]string, i.ChannelCount)
	for idx := range labels {
		if idx < len(i.Channels) && strings.TrimSpace(i.Channels[idx].Label) != "" {
			labels[idx] = strings.TrimSpace(i.Channels[idx].Label)
			continue
		}
		labels[idx] = fmt.Sprintf("%d", idx+1)
	}
	return labels
}

// ClockOffset is one clock synchronization measurement.
type ClockOffset struct {
	CollectionTime float64
	Value          float64
}

// Stream holds the decoded contents of one stream.
type Stream struct {
	ID           uint32
	Info         StreamInfo
	TimeStamps   []float64
	Data         [][]float64 // channel-major numeric samples
	Strings      [][]string  // sample-major string samples
	ClockOffsets []ClockOffset
	FooterXML    string
}

// Len returns the number of samples in the stream.
func (s *Stream) Len() int {
	return len(s.TimeStamps)
}

// File is a decoded XDF container.
type File struct {
	Header  FileHeader
	Streams []*Stream
}

// StreamsByType returns streams whose type matches (case-insensitive).
func (f *File) StreamsByType(streamType string) []*Stream {
	var out []*Stream
	for _, s := range f.Streams {
		if strings.EqualFold(strings.TrimSpace(s.Info.Type), strings.TrimSpace(streamType)) {
			out = append(out, s)
		}
	}
	return out
}

// StreamByName returns the first stream with the given name.
func (f *File) StreamByName(name string) (*Stream, bool) {
	for _, s := range f.Streams {
		if strings.EqualFold(s.Info.Name, name) {
			return s, true
		}
	}
	return nil, false
}

func formatSize(format string) (int, error) {
	switch format {
	case FormatInt8:
		return 1, nil
	case FormatInt16:
		return 2, nil
	case FormatFloat32, FormatInt32:
		return 4, nil
	case FormatDouble, FormatInt64:
		return 8, nil
	case FormatString:
		return 0, nil
	default:
		return 0, fmt.Errorf("xdf: unsupported channel format %q", format)
	}
}

func decodeValue(format string, b []byte) float64 {
	switch format {
	case FormatInt8:
		return float64(int8(b[0]))
	case FormatInt16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case FormatInt32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case FormatInt64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case FormatFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

func encodeValue(format string, b []byte, v float64) {
	switch format {
	case FormatInt8:
		b[0] = byte(int8(v))
	case FormatInt16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case FormatInt32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case FormatInt64:
		binary.LittleEndian.PutUint64(b, uint64(int64(v)))
	case FormatFloat32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	default:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}
