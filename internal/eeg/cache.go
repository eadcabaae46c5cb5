package eeg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"mobiqc/internal/fileutil"
	"mobiqc/internal/logging"
	"mobiqc/internal/services"
)

const (
	signalSuffix = "_eeg_clean.qcsig"
	varsSuffix   = "_eeg_clean_vars.json"
	signalMagic  = "QCSIG\x01"
)

// Artifact is a cached cleaned signal with the timestamps of its samples and
// its quality summary.
type Artifact struct {
	Raw        *Raw
	TimeStamps []float64
	Vars       Vars
}

// ArtifactCache stores cleaned signals per subject. An empty Dir keeps them
// next to the recording.
type ArtifactCache struct {
	Dir    string
	Logger *slog.Logger
}

// CacheKey identifies a recording's content under one pipeline version.
func CacheKey(recordingPath, version string) (string, error) {
	sum, err := fileutil.HashFile(recordingPath)
	if err != nil {
		return "", fmt.Errorf("eeg: cache key: %w", err)
	}
	return "sha256:" + sum + "+v" + version, nil
}

func (c *ArtifactCache) dir(recordingPath string) string {
	if strings.TrimSpace(c.Dir) != "" {
		return c.Dir
	}
	return filepath.Dir(recordingPath)
}

func (c *ArtifactCache) logger() *slog.Logger {
	if c.Logger == nil {
		return logging.NewNop()
	}
	return c.Logger
}

// SignalPath is where Store writes the cleaned signal for subject.
func (c *ArtifactCache) SignalPath(subject, recordingPath string) string {
	return filepath.Join(c.dir(recordingPath), "sub-"+subject+signalSuffix)
}

// VarsPathFor maps a signal file to its sidecar.
func VarsPathFor(signalPath string) string {
	return strings.TrimSuffix(signalPath, signalSuffix) + varsSuffix
}

// Find resolves the subject's cached signal. A missing artifact yields ""
// and no error; several candidates yield *services.AmbiguousMatchError.
func (c *ArtifactCache) Find(subject, recordingPath string) (string, error) {
	pattern := filepath.Join(c.dir(recordingPath), "sub-"+subject+"_*"+strings.TrimPrefix(signalSuffix, "_"))
	return services.ResolveOptional("cleaned EEG artifact", pattern)
}

// Load returns the cached artifact when one exists and its key matches.
// Stale or incomplete artifacts are reported as a miss.
func (c *ArtifactCache) Load(subject, recordingPath, key string) (*Artifact, bool, error) {
	signalPath, err := c.Find(subject, recordingPath)
	if err != nil || signalPath == "" {
		return nil, false, err
	}
	vars, err := readVars(VarsPathFor(signalPath))
	if errors.Is(err, fs.ErrNotExist) {
		c.logger().Warn("cleaned artifact has no vars sidecar; recomputing",
			logging.String("path", signalPath),
			logging.String(logging.FieldEventType, "eeg_cache_incomplete"))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if vars.CacheKey != key {
		c.logger().Info("cleaned artifact is stale; recomputing",
			logging.String("path", signalPath),
			logging.String("cached_key", vars.CacheKey),
			logging.String("current_key", key),
			logging.String(logging.FieldEventType, "eeg_cache_stale"))
		return nil, false, nil
	}
	raw, ts, err := readSignal(signalPath)
	if err != nil {
		return nil, false, err
	}
	return &Artifact{Raw: raw, TimeStamps: ts, Vars: vars}, true, nil
}

// Store writes the signal and then its sidecar.
func (c *ArtifactCache) Store(subject, recordingPath string, art *Artifact) error {
	signalPath := c.SignalPath(subject, recordingPath)
	if err := writeSignal(signalPath, art.Raw, art.TimeStamps); err != nil {
		return err
	}
	return c.SaveVars(subject, recordingPath, art.Vars)
}

// SaveVars rewrites the sidecar only.
func (c *ArtifactCache) SaveVars(subject, recordingPath string, vars Vars) error {
	vars.normalize()
	payload, err := json.MarshalIndent(vars, "", "    ")
	if err != nil {
		return fmt.Errorf("eeg: encode vars: %w", err)
	}
	path := VarsPathFor(c.SignalPath(subject, recordingPath))
	if err := fileutil.WriteAtomic(path, payload, 0o644); err != nil {
		return fmt.Errorf("eeg: write vars: %w", err)
	}
	return nil
}

func readVars(path string) (Vars, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vars{}, err
	}
	var vars Vars
	if err := json.Unmarshal(data, &vars); err != nil {
		return Vars{}, fmt.Errorf("eeg: decode %s: %w", path, err)
	}
	vars.normalize()
	return vars, nil
}

type signalHeader struct {
	Channels    []string     `json:"channels"`
	SFreq       float64      `json:"sfreq"`
	NTimes      int          `json:"n_times"`
	Bads        []string     `json:"bads,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	TimeStamps  bool         `json:"timestamps"`
}

func writeSignal(path string, raw *Raw, ts []float64) error {
	if ts != nil && len(ts) != raw.NTimes() {
		return fmt.Errorf("eeg: %d timestamps for %d samples", len(ts), raw.NTimes())
	}
	header, err := json.Marshal(signalHeader{
		Channels:    raw.Channels,
		SFreq:       raw.SFreq,
		NTimes:      raw.NTimes(),
		Bads:        raw.Bads,
		Annotations: raw.Annotations,
		TimeStamps:  ts != nil,
	})
	if err != nil {
		return fmt.Errorf("eeg: encode signal header: %w", err)
	}
	err = fileutil.WriteAtomicFunc(path, 0o644, func(w io.Writer) error {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(enc, signalMagic); err != nil {
			enc.Close()
			return err
		}
		if err := binary.Write(enc, binary.LittleEndian, uint32(len(header))); err != nil {
			enc.Close()
			return err
		}
		if _, err := enc.Write(header); err != nil {
			enc.Close()
			return err
		}
		for _, ch := range raw.Data {
			if err := binary.Write(enc, binary.LittleEndian, ch); err != nil {
				enc.Close()
				return err
			}
		}
		if ts != nil {
			if err := binary.Write(enc, binary.LittleEndian, ts); err != nil {
				enc.Close()
				return err
			}
		}
		return enc.Close()
	})
	if err != nil {
		return fmt.Errorf("eeg: write cleaned signal: %w", err)
	}
	return nil
}

func readSignal(path string) (*Raw, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("eeg: open cleaned signal: %w", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("eeg: open cleaned signal: %w", err)
	}
	defer dec.Close()

	magic := make([]byte, len(signalMagic))
	if _, err := io.ReadFull(dec, magic); err != nil || string(magic) != signalMagic {
		return nil, nil, fmt.Errorf("eeg: %s is not a cleaned signal file", path)
	}
	var size uint32
	if err := binary.Read(dec, binary.LittleEndian, &size); err != nil {
		return nil, nil, fmt.Errorf("eeg: read signal header: %w", err)
	}
	headerBytes := make([]byte, size)
	if _, err := io.ReadFull(dec, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("eeg: read signal header: %w", err)
	}
	var header signalHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, fmt.Errorf("eeg: decode signal header: %w", err)
	}
	data := make([][]float64, len(header.Channels))
	for i := range data {
		data[i] = make([]float64, header.NTimes)
		if err := binary.Read(dec, binary.LittleEndian, data[i]); err != nil {
			return nil, nil, fmt.Errorf("eeg: read channel %s: %w", header.Channels[i], err)
		}
	}
	var ts []float64
	if header.TimeStamps {
		ts = make([]float64, header.NTimes)
		if err := binary.Read(dec, binary.LittleEndian, ts); err != nil {
			return nil, nil, fmt.Errorf("eeg: read timestamps: %w", err)
		}
	}
	raw, err := NewRaw(header.Channels, header.SFreq, data)
	if err != nil {
		return nil, nil, err
	}
	raw.Bads = header.Bads
	raw.Annotations = header.Annotations
	return raw, ts, nil
}

// CachedArtifact describes one cleaned signal on disk.
type CachedArtifact struct {
	Subject    string
	SignalPath string
	VarsPath   string
	Size       int64
	ModTime    time.Time
	Vars       *Vars
}

// ListArtifacts returns the cleaned signals in dir sorted by subject. Vars is
// nil when the sidecar is missing or unreadable.
func ListArtifacts(dir string) ([]CachedArtifact, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "sub-*"+signalSuffix))
	if err != nil {
		return nil, err
	}
	out := make([]CachedArtifact, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entry := CachedArtifact{
			Subject:    subjectFromArtifact(filepath.Base(path)),
			SignalPath: path,
			VarsPath:   VarsPathFor(path),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		}
		if vars, err := readVars(entry.VarsPath); err == nil {
			entry.Vars = &vars
			if sidecar, err := os.Stat(entry.VarsPath); err == nil {
				entry.Size += sidecar.Size()
			}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out, nil
}

// Remove deletes the signal and its sidecar.
func (a CachedArtifact) Remove() error {
	for _, path := range []string{a.SignalPath, a.VarsPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func subjectFromArtifact(name string) string {
	name = strings.TrimPrefix(name, "sub-")
	if idx := strings.Index(name, "_"); idx >= 0 {
		return name[:idx]
	}
	return strings.TrimSuffix(name, signalSuffix)
}
