package analysis

import "math"

// StringInfo classifies a detected pitch against standard guitar tuning. It
// is attached to fret-buzz and string-health results whenever a pitch was
// accepted that frame; it carries no state of its own.
type StringInfo struct {
	StringNumber int     // 1 (high e) .. 6 (low E), or -1 when Unknown
	StringName   string  // "E", "A", "D", "G", "B", "e", or "" when Unknown
	Confidence   float64 // in [0,1]
	DetuneCents  float64 // signed; positive means sharp of the nearest string
}

const (
	minGuitarFreq           = 70.0
	maxGuitarFreq           = 400.0
	stringHighConfidenceCts = 5.0
	stringZeroConfidenceCts = 50.0
)

type tuningReference struct {
	name      string
	frequency float64
	number    int
}

// standardTuning is low-to-high: E2 A2 D3 G3 B3 E4.
var standardTuning = []tuningReference{
	{"E", 82.41, 6},
	{"A", 110.0, 5},
	{"D", 146.83, 4},
	{"G", 196.0, 3},
	{"B", 246.94, 2},
	{"e", 329.63, 1},
}

// ClassifyString maps a detected frequency to the nearest standard-tuning
// string, or Unknown if the frequency falls outside the guitar's playable
// range. It is a pure function.
func ClassifyString(frequencyHz float64) StringInfo {
	if frequencyHz < minGuitarFreq || frequencyHz > maxGuitarFreq {
		return StringInfo{StringNumber: -1}
	}

	best := standardTuning[0]
	bestCents := math.Abs(centsBetween(frequencyHz, best.frequency))
	for _, ref := range standardTuning[1:] {
		c := math.Abs(centsBetween(frequencyHz, ref.frequency))
		if c < bestCents {
			best = ref
			bestCents = c
		}
	}

	detune := centsBetween(frequencyHz, best.frequency)
	return StringInfo{
		StringNumber: best.number,
		StringName:   best.name,
		Confidence:   confidenceFromCents(math.Abs(detune)),
		DetuneCents:  detune,
	}
}

func centsBetween(measured, reference float64) float64 {
	if measured <= 0 || reference <= 0 {
		return 0
	}
	return 1200 * math.Log2(measured/reference)
}

func confidenceFromCents(absCents float64) float64 {
	if absCents <= stringHighConfidenceCts {
		return 1.0
	}
	if absCents >= stringZeroConfidenceCts {
		return 0.0
	}
	span := stringZeroConfidenceCts - stringHighConfidenceCts
	return 1.0 - (absCents-stringHighConfidenceCts)/span
}
