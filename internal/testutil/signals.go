// Package testutil provides deterministic signal generators and small
// helpers reused across the analyzer test files, the way the teacher
// codebase's fixture package does for its own FFT tests.
package testutil

import "math"

// SineWave generates n samples of a pure sine at freq Hz sampled at
// sampleRate, normalized to [-1, 1].
func SineWave(freq, sampleRate float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}
	return out
}

// HarmonicWave generates n samples of a fundamental at freq Hz plus its
// first harmonics-1 overtones, each attenuated by 1/n, then normalized so
// the peak absolute amplitude is 1.
func HarmonicWave(freq, sampleRate float64, n, harmonics int) []float32 {
	out := make([]float32, n)
	var peak float32
	for i := range out {
		var sum float64
		for h := 1; h <= harmonics; h++ {
			sum += (1 / float64(h)) * math.Sin(2*math.Pi*float64(h)*freq*float64(i)/sampleRate)
		}
		out[i] = float32(sum)
		if a := absf32(out[i]); a > peak {
			peak = a
		}
	}
	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

// DecayingHarmonicWave is HarmonicWave additionally enveloped by
// exp(-decayPerSecond * t), useful for exercising string-health decay
// fitting.
func DecayingHarmonicWave(freq, sampleRate float64, n, harmonics int, decayPerSecond, startSeconds float64) []float32 {
	out := HarmonicWave(freq, sampleRate, n, harmonics)
	for i := range out {
		t := startSeconds + float64(i)/sampleRate
		out[i] *= float32(math.Exp(-decayPerSecond * t))
	}
	return out
}

// WithNoise adds uniform noise of the given amplitude to frac*len(signal)
// leading samples of signal, in place, and returns it.
func WithNoise(signal []float32, amplitude float32, frac float64, seed uint64) []float32 {
	n := int(float64(len(signal)) * frac)
	for i := 0; i < n; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		r := float32(seed>>40) / float32(1<<24) // deterministic pseudo-uniform in [0,1)
		signal[i] += (r*2 - 1) * amplitude
	}
	return signal
}

// FindPeakBin returns the index of the largest value in magnitudes within
// [start, end).
func FindPeakBin(magnitudes []float64, start, end int) int {
	if start < 0 {
		start = 0
	}
	if end > len(magnitudes) {
		end = len(magnitudes)
	}
	peak := start
	for i := start; i < end; i++ {
		if magnitudes[i] > magnitudes[peak] {
			peak = i
		}
	}
	return peak
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
