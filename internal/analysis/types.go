// Package analysis implements the worker-driven frame dispatcher and the
// three diagnostic analyzers (fret-buzz, intonation, string-health) that run
// on top of the sample ring and DSP primitives.
package analysis

import (
	"sync"
	"time"
)

// Config is the immutable parameter bundle every analyzer is configured
// with exactly once, before the engine starts dispatching frames to it.
type Config struct {
	SampleRate float64 // Hz, must be positive
	FrameSize  int     // samples per frame, must be positive
}

// Valid reports whether the config can be used to configure an analyzer.
func (c Config) Valid() bool {
	return c.SampleRate > 0 && c.FrameSize > 0
}

// Result is the common envelope every analyzer publishes. Concrete
// analyzers embed it and add their own fields.
type Result struct {
	Timestamp    time.Time
	IsValid      bool
	ErrorMessage string
}

// Analyzer is the capability set the engine drives every registered
// analyzer through. These methods are called only from the engine's single
// worker goroutine. LatestResult is not part of this interface: each
// concrete analyzer provides it with its own result type, and it is the one
// method consumers call concurrently.
type Analyzer interface {
	Configure(cfg Config)
	ProcessFrame(frame []float32)
	Reset()
}

// ResultSlot is a single-cell, mutex-protected publication slot: the
// worker is the sole writer, any number of goroutines may read a coherent
// snapshot concurrently. This is the simplest of the two ownership
// strategies described for the core's publication boundary (the
// alternative being an atomic.Pointer to an immutable snapshot); a mutex
// here costs nothing since frame periods are milliseconds, not
// microseconds.
type ResultSlot[T any] struct {
	mu   sync.Mutex
	last T
}

// Publish overwrites the slot's value. Older results are dropped.
func (s *ResultSlot[T]) Publish(v T) {
	s.mu.Lock()
	s.last = v
	s.mu.Unlock()
}

// Load returns the most recently published value, or the zero value if
// nothing has been published yet.
func (s *ResultSlot[T]) Load() T {
	s.mu.Lock()
	v := s.last
	s.mu.Unlock()
	return v
}
