package analysis

import (
	"math"
	"time"

	"guitardiag/internal/dsp"
)

const (
	stringHealthFFTSize  = 2048
	decayHistorySize     = 50
	decayHistoryMin      = 10
	decayLogPointsMin    = 2
	decayRegressionFloor = 1e-6
	minDecayRateDbPerSec = -50.0
	maxDecayRateDbPerSec = -5.0
	spectralScoreSpanHz  = 5000.0
	nepersToDecibels     = 8.686 // 20/ln(10)
	harmonicMeanFloor    = 1e-6
	healthConfidenceMin  = 0.5
)

// StringHealthResult is the published verdict for one frame.
type StringHealthResult struct {
	Result

	HealthScore           float64
	DecayRate             float64 // dB/s, typically negative
	SpectralCentroid       float64 // Hz
	Inharmonicity          float64
	FundamentalFrequency   float64
	StringInfo             StringInfo
}

type harmonicSample struct {
	magnitudes [numHarmonics]float64
	at         time.Time
}

// StringHealthAnalyzer rates the "brightness" and harmonic integrity of a
// sustained note by fusing a harmonic-decay rate fit, spectral centroid,
// and inharmonicity into a single [0,1] health score.
type StringHealthAnalyzer struct {
	configured bool
	spectrum   *dsp.Spectrum
	pitch      *dsp.PitchDetector

	history []harmonicSample // FIFO, capacity decayHistorySize

	lastF0 float64

	slot ResultSlot[StringHealthResult]
}

// NewStringHealthAnalyzer constructs an unconfigured analyzer.
func NewStringHealthAnalyzer() *StringHealthAnalyzer {
	return &StringHealthAnalyzer{history: make([]harmonicSample, 0, decayHistorySize)}
}

func (sh *StringHealthAnalyzer) Configure(cfg Config) {
	if !cfg.Valid() {
		return
	}
	sh.spectrum = dsp.NewSpectrum(stringHealthFFTSize, cfg.SampleRate)
	sh.pitch = dsp.NewPitchDetector(cfg.SampleRate, pitchMinHz, pitchMaxHz, yinThreshold)
	sh.configured = true
}

func (sh *StringHealthAnalyzer) ProcessFrame(frame []float32) {
	if !sh.configured {
		return
	}

	sh.spectrum.Compute(frame)

	est := sh.pitch.Detect(frame)
	var info StringInfo = StringInfo{StringNumber: -1}
	if est.Found && est.Confidence > healthConfidenceMin {
		sh.lastF0 = est.FrequencyHz
		sh.trackHarmonics(sh.lastF0)
		info = ClassifyString(sh.lastF0)
	}

	decayRate := sh.fitDecayRate()
	centroid := sh.spectrum.Centroid()
	inharmonicity := harmonicInharmonicity(sh.spectrum, sh.lastF0, 3)

	decayScore := clamp01((decayRate - minDecayRateDbPerSec) / (maxDecayRateDbPerSec - minDecayRateDbPerSec))
	spectralScore := clamp01(1 - centroid/spectralScoreSpanHz)
	inharmonicityScoreSub := 1 - inharmonicity

	health := clamp01(0.3*decayScore + 0.3*spectralScore + 0.4*inharmonicityScoreSub)

	sh.slot.Publish(StringHealthResult{
		Result:               Result{Timestamp: time.Now(), IsValid: true},
		HealthScore:          health,
		DecayRate:            decayRate,
		SpectralCentroid:     centroid,
		Inharmonicity:        inharmonicity,
		FundamentalFrequency: sh.lastF0,
		StringInfo:           info,
	})
}

func (sh *StringHealthAnalyzer) trackHarmonics(f0 float64) {
	var sample harmonicSample
	sample.at = time.Now()
	for n := 1; n <= numHarmonics; n++ {
		bin := sh.spectrum.BinOf(float64(n) * f0)
		sample.magnitudes[n-1] = sh.spectrum.Magnitude(bin)
	}

	if len(sh.history) == decayHistorySize {
		copy(sh.history, sh.history[1:])
		sh.history[len(sh.history)-1] = sample
	} else {
		sh.history = append(sh.history, sample)
	}
}

// fitDecayRate performs an ordinary-least-squares regression of
// log(mean harmonic magnitude) against elapsed seconds since the first
// history entry, and scales the resulting slope (nepers/s) to dB/s.
func (sh *StringHealthAnalyzer) fitDecayRate() float64 {
	if len(sh.history) < decayHistoryMin {
		return 0
	}

	t0 := sh.history[0].at
	xs := make([]float64, 0, len(sh.history))
	ys := make([]float64, 0, len(sh.history))

	for _, s := range sh.history {
		mean := meanOf(s.magnitudes[:])
		if mean <= harmonicMeanFloor {
			continue
		}
		xs = append(xs, s.at.Sub(t0).Seconds())
		ys = append(ys, math.Log(mean))
	}
	if len(xs) < decayLogPointsMin {
		return 0
	}

	slope, ok := olsSlope(xs, ys)
	if !ok {
		return 0
	}
	return slope * nepersToDecibels
}

// olsSlope fits y = a + b*x by ordinary least squares and returns b. ok is
// false if the variance of x is too small to fit reliably.
func olsSlope(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var num, denom float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		num += dx * dy
		denom += dx * dx
	}
	if denom < decayRegressionFloor {
		return 0, false
	}
	return num / denom, true
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func (sh *StringHealthAnalyzer) Reset() {
	sh.history = sh.history[:0]
	sh.lastF0 = 0
	sh.slot.Publish(StringHealthResult{
		Result:     Result{Timestamp: time.Now(), IsValid: true},
		StringInfo: StringInfo{StringNumber: -1},
	})
}

// LatestResult returns the most recently published snapshot.
func (sh *StringHealthAnalyzer) LatestResult() StringHealthResult {
	return sh.slot.Load()
}
