package eeg

// Annotation labels an interval of the signal in seconds from its first
// sample.
type Annotation struct {
	Onset       float64 `json:"onset"`
	Duration    float64 `json:"duration"`
	Description string  `json:"description"`
}

// Labels used by the detectors.
const (
	LabelBlink  = "blink"
	LabelMuscle = "BAD_muscle"
)

// MergeAnnotations concatenates the groups in order. Overlapping intervals
// are kept as they are.
func MergeAnnotations(groups ...[]Annotation) []Annotation {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	out := make([]Annotation, 0, total)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// BadMask marks every sample covered by an annotation. Each annotation covers
// [int(onset*sfreq), int(onset*sfreq)+int(duration*sfreq)), clipped to the
// signal.
func BadMask(nTimes int, sfreq float64, annotations []Annotation) []bool {
	mask := make([]bool, nTimes)
	for _, a := range annotations {
		start := int(a.Onset * sfreq)
		end := start + int(a.Duration*sfreq)
		if start < 0 {
			start = 0
		}
		if end > nTimes {
			end = nTimes
		}
		for i := start; i < end; i++ {
			mask[i] = true
		}
	}
	return mask
}

// PercentGood returns the percentage of samples outside every annotation.
// An empty signal is 0 % good.
func PercentGood(nTimes int, sfreq float64, annotations []Annotation) float64 {
	if nTimes <= 0 {
		return 0
	}
	bad := 0
	for _, v := range BadMask(nTimes, sfreq, annotations) {
		if v {
			bad++
		}
	}
	return (1 - float64(bad)/float64(nTimes)) * 100
}

// CountLabel returns how many annotations carry description.
func CountLabel(annotations []Annotation, description string) int {
	n := 0
	for _, a := range annotations {
		if a.Description == description {
			n++
		}
	}
	return n
}
