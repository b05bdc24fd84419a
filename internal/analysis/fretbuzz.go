package analysis

import (
	"math"
	"time"

	"guitardiag/internal/dsp"
)

// fretBuzzFFTSize is fixed independently of AnalysisConfig.FrameSize, per
// the decoupling the analyzers preserve between the engine's frame size and
// each analyzer's internal FFT size (they are recommended to be equal in
// deployment, but nothing enforces it).
const fretBuzzFFTSize = 2048

const (
	onsetThreshold          = 1.5
	buzzThreshold           = 0.3 // not gated on anywhere in this package
	highFreqBandLoHz        = 4000.0
	highFreqBandHiHz        = 8000.0
	totalBandLoHz           = 80.0
	totalBandHiHz           = 12000.0
	numHarmonics            = 10
	pitchMinHz              = 80.0
	pitchMaxHz              = 1200.0
	yinThreshold            = 0.15
	inharmonicityConfidence = 0.5
)

// FretBuzzResult is the published verdict for one frame.
type FretBuzzResult struct {
	Result

	BuzzScore           float64
	OnsetDetected       bool
	TransientScore      float64
	HighFreqEnergyScore float64
	InharmonicityScore  float64
	StringInfo          StringInfo
}

// FretBuzzAnalyzer detects the likelihood that the current frame exhibits
// fret buzz, combining a transient-shape score, a high-frequency energy
// score, and a harmonic-inharmonicity score.
type FretBuzzAnalyzer struct {
	configured bool
	sampleRate float64

	spectrum *dsp.Spectrum
	pitch    *dsp.PitchDetector

	prevSpectrum []float64 // copy of the previous frame's magnitudes
	havePrev     bool
	prevRMS      float64

	slot ResultSlot[FretBuzzResult]
}

// NewFretBuzzAnalyzer constructs an unconfigured analyzer; Configure must
// be called (normally by Engine.Register) before ProcessFrame does
// anything.
func NewFretBuzzAnalyzer() *FretBuzzAnalyzer {
	return &FretBuzzAnalyzer{}
}

func (f *FretBuzzAnalyzer) Configure(cfg Config) {
	if !cfg.Valid() {
		return
	}
	f.sampleRate = cfg.SampleRate
	f.spectrum = dsp.NewSpectrum(fretBuzzFFTSize, cfg.SampleRate)
	f.pitch = dsp.NewPitchDetector(cfg.SampleRate, pitchMinHz, pitchMaxHz, yinThreshold)
	f.prevSpectrum = make([]float64, f.spectrum.Bins())
	f.configured = true
}

func (f *FretBuzzAnalyzer) ProcessFrame(frame []float32) {
	if !f.configured {
		return
	}

	f.spectrum.Compute(frame)

	rms := rmsOf(frame)
	flux := f.spectralFlux()
	onset := false
	if f.havePrev {
		ratioOnset := f.prevRMS > 0 && rms/f.prevRMS > onsetThreshold
		onset = ratioOnset || flux > onsetThreshold
	}

	transient := f.transientScore(frame)
	highFreq := f.highFreqEnergyScore()
	inharmonicity, info := f.inharmonicityScoreAndString(frame)

	buzz := 0.3*transient + 0.4*highFreq + 0.3*inharmonicity

	copy(f.prevSpectrum, f.spectrum.Magnitudes())
	f.havePrev = true
	f.prevRMS = rms

	f.slot.Publish(FretBuzzResult{
		Result:              Result{Timestamp: time.Now(), IsValid: true},
		BuzzScore:            clamp01(buzz),
		OnsetDetected:        onset,
		TransientScore:       transient,
		HighFreqEnergyScore:  highFreq,
		InharmonicityScore:   inharmonicity,
		StringInfo:           info,
	})
}

func (f *FretBuzzAnalyzer) Reset() {
	f.havePrev = false
	f.prevRMS = 0
	for i := range f.prevSpectrum {
		f.prevSpectrum[i] = 0
	}
	f.slot.Publish(FretBuzzResult{
		Result:     Result{Timestamp: time.Now(), IsValid: true},
		StringInfo: StringInfo{StringNumber: -1},
	})
}

// LatestResult returns the most recently published snapshot. Safe to call
// from any goroutine.
func (f *FretBuzzAnalyzer) LatestResult() FretBuzzResult {
	return f.slot.Load()
}

func (f *FretBuzzAnalyzer) spectralFlux() float64 {
	if !f.havePrev {
		return 0
	}
	mags := f.spectrum.Magnitudes()
	var flux float64
	for i, m := range mags {
		d := m - f.prevSpectrum[i]
		if d > 0 {
			flux += d
		}
	}
	return flux
}

func (f *FretBuzzAnalyzer) transientScore(frame []float32) float64 {
	attackScore := attackTimeScore(frame, f.sampleRate)
	zcrScore := zeroCrossingScore(frame, f.sampleRate)
	return (attackScore + zcrScore) / 2
}

func attackTimeScore(frame []float32, sampleRate float64) float64 {
	var maxAmp float32
	for _, s := range frame {
		a := absf32(s)
		if a > maxAmp {
			maxAmp = a
		}
	}

	var attackSeconds float64
	if maxAmp < 0.01 {
		attackSeconds = 1.0
	} else {
		threshold := 0.9 * maxAmp
		idx := len(frame) - 1
		for i, s := range frame {
			if absf32(s) >= threshold {
				idx = i
				break
			}
		}
		attackSeconds = float64(idx) / sampleRate
	}
	return clamp01(1 - attackSeconds/0.1)
}

func zeroCrossingScore(frame []float32, sampleRate float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	var crossings int
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	durationSeconds := float64(len(frame)) / sampleRate
	if durationSeconds <= 0 {
		return 0
	}
	zcr := float64(crossings) / durationSeconds
	return clamp01(zcr / 1000)
}

func (f *FretBuzzAnalyzer) highFreqEnergyScore() float64 {
	highFreq := f.spectrum.BandEnergy(highFreqBandLoHz, highFreqBandHiHz)
	total := f.spectrum.BandEnergy(totalBandLoHz, totalBandHiHz)
	if total < 1e-6 {
		return 0
	}
	return clamp01(highFreq / total)
}

func (f *FretBuzzAnalyzer) inharmonicityScoreAndString(frame []float32) (float64, StringInfo) {
	est := f.pitch.Detect(frame)
	if !est.Found || est.Confidence < inharmonicityConfidence {
		return 0, StringInfo{StringNumber: -1}
	}

	score := harmonicInharmonicity(f.spectrum, est.FrequencyHz, 2)
	return score, ClassifyString(est.FrequencyHz)
}

// harmonicInharmonicity is shared by FretBuzzAnalyzer (±2 bin search) and
// StringHealthAnalyzer (±3 bin search): it walks the first numHarmonics
// integer multiples of f0, finds the local magnitude peak within
// searchBins of the expected bin, and averages the relative frequency
// deviation from the ideal harmonic.
func harmonicInharmonicity(spec *dsp.Spectrum, f0 float64, searchBins int) float64 {
	if f0 <= 0 {
		return 0
	}

	var total float64
	for n := 1; n <= numHarmonics; n++ {
		expectedFreq := float64(n) * f0
		expectedBin := spec.BinOf(expectedFreq)

		bestBin := expectedBin
		bestMag := spec.Magnitude(expectedBin)
		lo, hi := expectedBin-searchBins, expectedBin+searchBins
		for b := lo; b <= hi; b++ {
			if b < 0 || b >= spec.Bins() {
				continue
			}
			if m := spec.Magnitude(b); m > bestMag {
				bestMag = m
				bestBin = b
			}
		}

		actualFreq := spec.FrequencyOf(bestBin)
		total += math.Abs(actualFreq-expectedFreq) / expectedFreq
	}

	return clamp01(total / float64(numHarmonics))
}

func rmsOf(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
