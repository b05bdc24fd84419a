// Package dsp provides the two building-block primitives the analyzers are
// built on: a windowed magnitude spectrum and a YIN-style pitch detector.
// Both are frame-agnostic and allocate only at construction.
package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"guitardiag/pkg/bitint"
)

// Spectrum computes a windowed magnitude spectrum at a fixed FFT size and
// exposes the lookups the analyzers need: per-bin magnitude, bin-to-frequency
// conversion, band energy, and spectral centroid. A Spectrum is reused across
// frames; Compute overwrites its internal buffers in place.
type Spectrum struct {
	fftSize    int
	sampleRate float64
	window     []float64
	input      []float64
	coeffs     []complex128
	magnitude  []float64
	fft        *fourier.FFT
}

// NewSpectrum builds a Spectrum for the given FFT size and sample rate.
// fftSize must be a power of two; NewSpectrum panics otherwise, mirroring
// the fail-fast contract of the building block it generalizes.
func NewSpectrum(fftSize int, sampleRate float64) *Spectrum {
	if !bitint.IsPowerOfTwo(fftSize) {
		panic("dsp: FFT size must be a power of 2")
	}

	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	outputSize := fftSize/2 + 1
	return &Spectrum{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		window:     window,
		input:      make([]float64, fftSize),
		coeffs:     make([]complex128, outputSize),
		magnitude:  make([]float64, outputSize),
		fft:        fourier.NewFFT(fftSize),
	}
}

// Compute windows frame (zero-padding or truncating to the configured FFT
// size) and fills the internal magnitude buffer. frame samples are expected
// in [-1, 1].
func (s *Spectrum) Compute(frame []float32) {
	for i := 0; i < s.fftSize; i++ {
		if i < len(frame) {
			s.input[i] = float64(frame[i]) * s.window[i]
		} else {
			s.input[i] = 0
		}
	}
	_ = s.fft.Coefficients(s.coeffs, s.input)
	for i, c := range s.coeffs {
		s.magnitude[i] = cmplx.Abs(c)
	}
}

// Bins returns the number of magnitude bins (fftSize/2 + 1).
func (s *Spectrum) Bins() int {
	return len(s.magnitude)
}

// Magnitude returns the current magnitude at bin i, or 0 if i is out of
// range.
func (s *Spectrum) Magnitude(i int) float64 {
	if i < 0 || i >= len(s.magnitude) {
		return 0
	}
	return s.magnitude[i]
}

// Magnitudes returns the live backing slice of the current frame's
// magnitudes. Callers that need to retain values across the next Compute
// call must copy it.
func (s *Spectrum) Magnitudes() []float64 {
	return s.magnitude
}

// FrequencyOf converts a bin index to Hz.
func (s *Spectrum) FrequencyOf(bin int) float64 {
	return float64(bin) * s.sampleRate / float64(s.fftSize)
}

// BinOf converts a frequency in Hz to the nearest bin index, clamped to a
// valid range.
func (s *Spectrum) BinOf(freqHz float64) int {
	bin := int(math.Round(freqHz * float64(s.fftSize) / s.sampleRate))
	if bin < 0 {
		return 0
	}
	if bin >= len(s.magnitude) {
		return len(s.magnitude) - 1
	}
	return bin
}

// BandEnergy sums squared magnitudes for bins whose frequency falls in
// [loHz, hiHz].
func (s *Spectrum) BandEnergy(loHz, hiHz float64) float64 {
	var energy float64
	for i, m := range s.magnitude {
		f := s.FrequencyOf(i)
		if f >= loHz && f <= hiHz {
			energy += m * m
		}
	}
	return energy
}

// Centroid returns the magnitude-weighted mean bin frequency in Hz. Returns
// 0 if the total magnitude is below the numerical floor.
func (s *Spectrum) Centroid() float64 {
	var weighted, total float64
	for i, m := range s.magnitude {
		weighted += float64(i) * m
		total += m
	}
	const epsilon = 1e-6
	if total < epsilon {
		return 0
	}
	return (weighted / total) * s.sampleRate / float64(s.fftSize)
}
