package eeg

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Position is a sensor location in head coordinates.
type Position struct {
	X, Y, Z float64
}

func (p Position) distance(o Position) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Montage maps channel labels to sensor positions.
type Montage map[string]Position

// LoadMontage reads "label,x,y,z" rows. Blank lines and lines starting with
// '#' are skipped, as is a header row whose coordinates are not numeric.
func LoadMontage(path string) (Montage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eeg: open montage: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comment = '#'
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	montage := Montage{}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("eeg: parse montage %s: %w", path, err)
		}
		line++
		var coords [3]float64
		numeric := true
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				numeric = false
				break
			}
			coords[i] = v
		}
		if !numeric {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("eeg: montage %s row %d has non-numeric coordinates", path, line)
		}
		montage[strings.TrimSpace(record[0])] = Position{X: coords[0], Y: coords[1], Z: coords[2]}
	}
	if len(montage) == 0 {
		return nil, fmt.Errorf("eeg: montage %s has no sensors", path)
	}
	return montage, nil
}

// Apply attaches the montage to raw and returns the channels it does not
// cover. Missing sensors are not an error.
func (m Montage) Apply(raw *Raw) []string {
	raw.Montage = m
	var missing []string
	for _, ch := range raw.Channels {
		if _, ok := m[ch]; !ok {
			missing = append(missing, ch)
		}
	}
	return missing
}
