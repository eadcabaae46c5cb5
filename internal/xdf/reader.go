package xdf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Option adjusts decoding behaviour.
type Option func(*readOptions)

type readOptions struct {
	syncClocks  bool
	headersOnly bool
}

// WithoutClockSync keeps raw timestamps instead of applying clock offsets.
func WithoutClockSync() Option {
	return func(o *readOptions) { o.syncClocks = false }
}

// HeadersOnly skips sample payloads; streams carry info but no samples.
func HeadersOnly() Option {
	return func(o *readOptions) { o.headersOnly = true }
}

// ReadFile decodes the XDF container at path.
func ReadFile(path string, opts ...Option) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("xdf: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(bufio.NewReaderSize(f, 1<<20), opts...)
}

// Read decodes an XDF container from r.
func Read(r io.Reader, opts ...Option) (*File, error) {
	options := readOptions{syncClocks: true}
	for _, opt := range opts {
		opt(&options)
	}

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("xdf: read magic: %w", err)
	}
	if string(head) != magic {
		return nil, ErrNotXDF
	}

	file := &File{}
	streams := map[uint32]*Stream{}
	for {
		tag, payload, err := readChunk(r, options.headersOnly)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagFileHeader:
			header, err := parseFileHeader(payload)
			if err != nil {
				return nil, err
			}
			file.Header = header
		case tagStreamHeader:
			c := cursor{b: payload}
			id := c.u32()
			if c.err != nil {
				return nil, fmt.Errorf("xdf: stream header: %w", c.err)
			}
			info, err := parseStreamInfo(c.rest())
			if err != nil {
				return nil, err
			}
			stream := &Stream{ID: id, Info: info}
			if !info.IsString() {
				stream.Data = make([][]float64, info.ChannelCount)
			}
			streams[id] = stream
			file.Streams = append(file.Streams, stream)
		case tagSamples:
			if options.headersOnly {
				continue
			}
			if err := decodeSamples(payload, streams); err != nil {
				return nil, err
			}
		case tagClockOffset:
			c := cursor{b: payload}
			id := c.u32()
			offset := ClockOffset{CollectionTime: c.f64(), Value: c.f64()}
			if c.err != nil {
				return nil, fmt.Errorf("xdf: clock offset: %w", c.err)
			}
			if stream, ok := streams[id]; ok {
				stream.ClockOffsets = append(stream.ClockOffsets, offset)
			}
		case tagStreamFooter:
			c := cursor{b: payload}
			id := c.u32()
			if stream, ok := streams[id]; ok && c.err == nil {
				stream.FooterXML = string(c.rest())
			}
		case tagBoundary:
			// Boundary chunks only aid recovery of damaged files.
		default:
			// Unknown chunk tags are skipped per the format's forward-compat rule.
		}
	}

	if options.syncClocks {
		for _, stream := range file.Streams {
			stream.syncClock()
		}
	}
	return file, nil
}

// ReadHeader decodes only the FileHeader chunk, which LabRecorder writes first.
func ReadHeader(path string) (FileHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileHeader{}, fmt.Errorf("xdf: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return FileHeader{}, fmt.Errorf("xdf: read magic: %w", err)
	}
	if string(head) != magic {
		return FileHeader{}, ErrNotXDF
	}
	for {
		tag, payload, err := readChunk(r, true)
		if errors.Is(err, io.EOF) {
			return FileHeader{}, errors.New("xdf: no file header chunk")
		}
		if err != nil {
			return FileHeader{}, err
		}
		if tag == tagFileHeader {
			return parseFileHeader(payload)
		}
	}
}

// readChunk returns the tag and content of the next chunk. When skipSamples
// is set, sample chunk payloads are discarded without allocation.
func readChunk(r io.Reader, skipSamples bool) (uint16, []byte, error) {
	var nb [1]byte
	if _, err := io.ReadFull(r, nb[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("xdf: read chunk length size: %w", err)
	}
	length, err := readLength(r, nb[0])
	if err != nil {
		return 0, nil, err
	}
	if length < 2 {
		return 0, nil, fmt.Errorf("xdf: chunk length %d too short", length)
	}
	var tagBuf [2]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("xdf: read chunk tag: %w", unexpected(err))
	}
	tag := binary.LittleEndian.Uint16(tagBuf[:])
	size := length - 2
	if skipSamples && tag == tagSamples {
		if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
			return 0, nil, fmt.Errorf("xdf: skip samples chunk: %w", unexpected(err))
		}
		return tag, nil, nil
	}
	if size > math.MaxInt32 {
		return 0, nil, fmt.Errorf("xdf: chunk of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("xdf: read chunk payload: %w", unexpected(err))
	}
	return tag, payload, nil
}

func readLength(r io.Reader, width byte) (uint64, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, fmt.Errorf("xdf: read chunk length: %w", unexpected(err))
	}
	switch width {
	case 1:
		return uint64(buf[0]), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf)), nil
	case 8:
		return binary.LittleEndian.Uint64(buf), nil
	default:
		return 0, fmt.Errorf("xdf: invalid length width %d", width)
	}
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func decodeSamples(payload []byte, streams map[uint32]*Stream) error {
	c := cursor{b: payload}
	id := c.u32()
	count := c.varLen()
	if c.err != nil {
		return fmt.Errorf("xdf: samples header: %w", c.err)
	}
	stream, ok := streams[id]
	if !ok {
		return fmt.Errorf("xdf: samples for undeclared stream %d", id)
	}
	info := stream.Info
	width, _ := formatSize(info.ChannelFormat)

	delta := 0.0
	if info.NominalSRate > 0 {
		delta = 1 / info.NominalSRate
	}
	for i := uint64(0); i < count; i++ {
		var ts float64
		switch c.u8() {
		case 8:
			ts = c.f64()
		case 0:
			if n := len(stream.TimeStamps); n > 0 {
				ts = stream.TimeStamps[n-1] + delta
			}
		default:
			return fmt.Errorf("xdf: stream %d: invalid timestamp size", id)
		}
		if info.IsString() {
			row := make([]string, info.ChannelCount)
			for ch := range row {
				n := c.varLen()
				row[ch] = string(c.take(int(n)))
			}
			stream.Strings = append(stream.Strings, row)
		} else {
			raw := c.take(width * info.ChannelCount)
			if c.err == nil {
				for ch := 0; ch < info.ChannelCount; ch++ {
					stream.Data[ch] = append(stream.Data[ch], decodeValue(info.ChannelFormat, raw[ch*width:(ch+1)*width]))
				}
			}
		}
		if c.err != nil {
			return fmt.Errorf("xdf: stream %d sample %d: %w", id, i, c.err)
		}
		stream.TimeStamps = append(stream.TimeStamps, ts)
	}
	return nil
}

// syncClock maps timestamps onto the recorder clock using a least-squares
// linear fit of the recorded offsets.
func (s *Stream) syncClock() {
	n := len(s.ClockOffsets)
	if n == 0 || len(s.TimeStamps) == 0 {
		return
	}
	intercept, slope := s.ClockOffsets[0].Value, 0.0
	if n > 1 {
		var sumX, sumY, sumXX, sumXY float64
		for _, o := range s.ClockOffsets {
			sumX += o.CollectionTime
			sumY += o.Value
			sumXX += o.CollectionTime * o.CollectionTime
			sumXY += o.CollectionTime * o.Value
		}
		fn := float64(n)
		denom := fn*sumXX - sumX*sumX
		if denom != 0 {
			slope = (fn*sumXY - sumX*sumY) / denom
			intercept = (sumY - slope*sumX) / fn
		} else {
			intercept = sumY / fn
		}
	}
	for i, ts := range s.TimeStamps {
		s.TimeStamps[i] = ts + intercept + slope*ts
	}
}

type cursor struct {
	b   []byte
	off int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.b) {
		c.err = io.ErrUnexpectedEOF
		return nil
	}
	out := c.b[c.off : c.off+n]
	c.off += n
	return out
}

func (c *cursor) rest() []byte {
	if c.err != nil {
		return nil
	}
	return c.b[c.off:]
}

func (c *cursor) u8() byte {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) f64() float64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (c *cursor) varLen() uint64 {
	switch width := c.u8(); width {
	case 1:
		return uint64(c.u8())
	case 4:
		return uint64(c.u32())
	case 8:
		b := c.take(8)
		if b == nil {
			return 0
		}
		return binary.LittleEndian.Uint64(b)
	default:
		if c.err == nil {
			c.err = fmt.Errorf("invalid variable-length width %d", width)
		}
		return 0
	}
}
