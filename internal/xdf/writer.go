package xdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer emits an XDF container chunk by chunk.
type Writer struct {
	w       io.Writer
	streams map[uint32]StreamInfo
	err     error
}

// NewWriter writes the magic code and file header to w.
func NewWriter(w io.Writer, header FileHeader) (*Writer, error) {
	if _, err := io.WriteString(w, magic); err != nil {
		return nil, fmt.Errorf("xdf: write magic: %w", err)
	}
	writer := &Writer{w: w, streams: map[uint32]StreamInfo{}}
	payload, err := marshalFileHeader(header)
	if err != nil {
		return nil, err
	}
	if err := writer.writeChunk(tagFileHeader, payload); err != nil {
		return nil, err
	}
	return writer, nil
}

// WriteStreamHeader declares a stream. Channel labels are optional.
func (w *Writer) WriteStreamHeader(id uint32, info StreamInfo) error {
	if _, err := formatSize(info.ChannelFormat); err != nil {
		return err
	}
	if info.ChannelCount <= 0 {
		return fmt.Errorf("xdf: stream %q needs at least one channel", info.Name)
	}
	body, err := marshalStreamInfo(info)
	if err != nil {
		return err
	}
	w.streams[id] = info
	return w.writeChunk(tagStreamHeader, append(uint32Bytes(id), body...))
}

// WriteSamples appends numeric samples. data is channel-major and each
// channel must have len(timestamps) values. A NaN timestamp is written as
// omitted so readers extrapolate it from the nominal rate.
func (w *Writer) WriteSamples(id uint32, timestamps []float64, data [][]float64) error {
	info, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("xdf: stream %d has no header", id)
	}
	if info.IsString() {
		return fmt.Errorf("xdf: stream %d carries strings", id)
	}
	if len(data) != info.ChannelCount {
		return fmt.Errorf("xdf: stream %d expects %d channels, got %d", id, info.ChannelCount, len(data))
	}
	for ch := range data {
		if len(data[ch]) != len(timestamps) {
			return fmt.Errorf("xdf: stream %d channel %d has %d samples, want %d", id, ch, len(data[ch]), len(timestamps))
		}
	}
	width, _ := formatSize(info.ChannelFormat)
	var buf bytes.Buffer
	buf.Write(uint32Bytes(id))
	writeVarLen(&buf, uint64(len(timestamps)))
	value := make([]byte, width)
	for i, ts := range timestamps {
		writeTimestamp(&buf, ts)
		for ch := 0; ch < info.ChannelCount; ch++ {
			encodeValue(info.ChannelFormat, value, data[ch][i])
			buf.Write(value)
		}
	}
	return w.writeChunk(tagSamples, buf.Bytes())
}

// WriteStringSamples appends string samples; values is sample-major.
func (w *Writer) WriteStringSamples(id uint32, timestamps []float64, values [][]string) error {
	info, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("xdf: stream %d has no header", id)
	}
	if !info.IsString() {
		return fmt.Errorf("xdf: stream %d carries numeric samples", id)
	}
	if len(values) != len(timestamps) {
		return fmt.Errorf("xdf: stream %d has %d rows for %d timestamps", id, len(values), len(timestamps))
	}
	var buf bytes.Buffer
	buf.Write(uint32Bytes(id))
	writeVarLen(&buf, uint64(len(timestamps)))
	for i, ts := range timestamps {
		if len(values[i]) != info.ChannelCount {
			return fmt.Errorf("xdf: stream %d row %d has %d values", id, i, len(values[i]))
		}
		writeTimestamp(&buf, ts)
		for _, v := range values[i] {
			writeVarLen(&buf, uint64(len(v)))
			buf.WriteString(v)
		}
	}
	return w.writeChunk(tagSamples, buf.Bytes())
}

// WriteClockOffset records one clock offset measurement.
func (w *Writer) WriteClockOffset(id uint32, offset ClockOffset) error {
	payload := make([]byte, 20)
	binary.LittleEndian.PutUint32(payload[0:4], id)
	binary.LittleEndian.PutUint64(payload[4:12], math.Float64bits(offset.CollectionTime))
	binary.LittleEndian.PutUint64(payload[12:20], math.Float64bits(offset.Value))
	return w.writeChunk(tagClockOffset, payload)
}

// WriteStreamFooter closes a stream with the given footer XML.
func (w *Writer) WriteStreamFooter(id uint32, footerXML string) error {
	return w.writeChunk(tagStreamFooter, append(uint32Bytes(id), footerXML...))
}

func (w *Writer) writeChunk(tag uint16, payload []byte) error {
	if w.err != nil {
		return w.err
	}
	length := uint64(len(payload) + 2)
	var header bytes.Buffer
	writeVarLen(&header, length)
	var tagBuf [2]byte
	binary.LittleEndian.PutUint16(tagBuf[:], tag)
	header.Write(tagBuf[:])
	if _, err := w.w.Write(header.Bytes()); err != nil {
		w.err = fmt.Errorf("xdf: write chunk header: %w", err)
		return w.err
	}
	if _, err := w.w.Write(payload); err != nil {
		w.err = fmt.Errorf("xdf: write chunk: %w", err)
		return w.err
	}
	return nil
}

func writeTimestamp(buf *bytes.Buffer, ts float64) {
	if math.IsNaN(ts) {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(8)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(ts))
	buf.Write(b[:])
}

func writeVarLen(buf *bytes.Buffer, n uint64) {
	switch {
	case n <= math.MaxUint8:
		buf.WriteByte(1)
		buf.WriteByte(byte(n))
	case n <= math.MaxUint32:
		buf.WriteByte(4)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(8)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], n)
		buf.Write(b[:])
	}
}

func uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
