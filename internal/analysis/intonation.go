package analysis

import (
	"math"
	"sort"
	"time"

	"guitardiag/internal/dsp"
)

// IntonationState is the calibration state machine's current position.
type IntonationState int

const (
	Idle IntonationState = iota
	OpenString
	WaitFor12thFret
	FrettedString
	Complete
)

func (s IntonationState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case OpenString:
		return "OpenString"
	case WaitFor12thFret:
		return "WaitFor12thFret"
	case FrettedString:
		return "FrettedString"
	case Complete:
		return "Complete"
	default:
		return "Unknown"
	}
}

const (
	pitchConfidenceMin   = 0.7
	pitchAccumulatorSize = 100
	stableSamplesMin     = 10
	stabilityStdDevMaxHz = 2.0
	stableDwell          = 500 * time.Millisecond
	octaveToleranceFrac  = 0.10
	inTuneToleranceCents = 5.0
)

// IntonationResult is the published verdict for one frame.
type IntonationResult struct {
	Result

	State                    IntonationState
	OpenStringFrequency      float64
	FrettedStringFrequency   float64
	ExpectedFrettedFrequency float64
	CentDeviation            float64
	IsInTune                 bool
}

// IntonationAnalyzer guides the caller through a two-note calibration
// (open string, then the same string fretted at the twelfth position) and
// reports the cent deviation between the measured and expected frettted
// pitch.
type IntonationAnalyzer struct {
	configured bool
	pitch      *dsp.PitchDetector

	state      IntonationState
	stateStart time.Time

	accumulator []float64 // capacity pitchAccumulatorSize, FIFO on overflow

	openStringFreq  float64
	frettedStringFreq float64

	slot ResultSlot[IntonationResult]
}

// NewIntonationAnalyzer constructs an unconfigured analyzer.
func NewIntonationAnalyzer() *IntonationAnalyzer {
	return &IntonationAnalyzer{accumulator: make([]float64, 0, pitchAccumulatorSize)}
}

func (ia *IntonationAnalyzer) Configure(cfg Config) {
	if !cfg.Valid() {
		return
	}
	ia.pitch = dsp.NewPitchDetector(cfg.SampleRate, pitchMinHz, pitchMaxHz, yinThreshold)
	ia.stateStart = time.Now()
	ia.configured = true
}

func (ia *IntonationAnalyzer) ProcessFrame(frame []float32) {
	if !ia.configured {
		return
	}

	est := ia.pitch.Detect(frame)
	if est.Found && est.Confidence >= pitchConfidenceMin {
		ia.accumulate(est.FrequencyHz)
	}

	ia.advance()
	ia.publish()
}

func (ia *IntonationAnalyzer) accumulate(freq float64) {
	if len(ia.accumulator) < pitchAccumulatorSize {
		ia.accumulator = append(ia.accumulator, freq)
		return
	}
	copy(ia.accumulator, ia.accumulator[1:])
	ia.accumulator[len(ia.accumulator)-1] = freq
}

func (ia *IntonationAnalyzer) clearAccumulator() {
	ia.accumulator = ia.accumulator[:0]
}

// stablePitch reports whether the accumulator currently represents a
// stable pitch (>=10 samples, stddev < 2Hz) and, if so, its median.
func (ia *IntonationAnalyzer) stablePitch() (float64, bool) {
	if len(ia.accumulator) < stableSamplesMin {
		return 0, false
	}
	if stdDev(ia.accumulator) >= stabilityStdDevMaxHz {
		return 0, false
	}
	return median(ia.accumulator), true
}

func (ia *IntonationAnalyzer) advance() {
	stable, isStable := ia.stablePitch()

	switch ia.state {
	case Idle:
		if isStable {
			ia.openStringFreq = stable
			ia.transitionTo(OpenString)
		}

	case OpenString:
		if isStable && ia.dwelled() {
			ia.transitionTo(WaitFor12thFret)
		}

	case WaitFor12thFret:
		expected := 2 * ia.openStringFreq
		if isStable && expected > 0 && math.Abs(stable-expected)/expected < octaveToleranceFrac {
			ia.frettedStringFreq = stable
			ia.transitionTo(FrettedString)
		}

	case FrettedString:
		if isStable && ia.dwelled() {
			ia.state = Complete
		}

	case Complete:
		// terminal until Reset
	}
}

func (ia *IntonationAnalyzer) dwelled() bool {
	return time.Since(ia.stateStart) >= stableDwell
}

func (ia *IntonationAnalyzer) transitionTo(next IntonationState) {
	ia.state = next
	ia.clearAccumulator()
	ia.stateStart = time.Now()
}

func (ia *IntonationAnalyzer) publish() {
	expected := 2 * ia.openStringFreq
	centDeviation, isInTune := 0.0, false
	if ia.state == Complete {
		centDeviation, isInTune = deviationCents(ia.frettedStringFreq, ia.openStringFreq)
	}

	ia.slot.Publish(IntonationResult{
		Result:                   Result{Timestamp: time.Now(), IsValid: true},
		State:                    ia.state,
		OpenStringFrequency:      ia.openStringFreq,
		FrettedStringFrequency:   ia.frettedStringFreq,
		ExpectedFrettedFrequency: expected,
		CentDeviation:            centDeviation,
		IsInTune:                 isInTune,
	})
}

func deviationCents(frettedFreq, openFreq float64) (float64, bool) {
	expected := 2 * openFreq
	if frettedFreq <= 0 || expected <= 0 {
		return 0, false
	}
	cents := 1200 * math.Log2(frettedFreq/expected)
	return cents, math.Abs(cents) <= inTuneToleranceCents
}

func (ia *IntonationAnalyzer) Reset() {
	ia.state = Idle
	ia.clearAccumulator()
	ia.openStringFreq = 0
	ia.frettedStringFreq = 0
	ia.stateStart = time.Now()
	ia.slot.Publish(IntonationResult{Result: Result{Timestamp: time.Now(), IsValid: true}})
}

// LatestResult returns the most recently published snapshot.
func (ia *IntonationAnalyzer) LatestResult() IntonationResult {
	return ia.slot.Load()
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
