package analysis

import (
	"sync"
	"sync/atomic"
	"time"

	applog "guitardiag/internal/log"
	"guitardiag/internal/ring"
)

// pollInterval is the bounded sleep the worker takes when the ring has
// fewer than one frame's worth of samples. Frame periods at typical
// configurations (2048 samples @ 48kHz ≈ 43ms) are far larger than this, so
// polling costs negligible latency while keeping the worker free to
// allocate and block, unlike the producer.
const pollInterval = time.Millisecond

// Engine drives the worker context: it pulls fixed-size frames out of a
// SampleRing and dispatches each, in registration order, to every
// registered Analyzer. It owns exactly one worker goroutine for its
// lifetime between Start and Stop.
type Engine struct {
	ring   *ring.SampleRing
	config Config
	scratch []float32

	mu        sync.Mutex
	analyzers []Analyzer

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewEngine prepares an Engine over ring with the given config. The engine
// is not running until Start is called.
func NewEngine(r *ring.SampleRing, config Config) *Engine {
	return &Engine{
		ring:    r,
		config:  config,
		scratch: make([]float32, config.FrameSize),
	}
}

// Register configures analyzer with the engine's config and appends it to
// the dispatch list, in order. A nil analyzer is ignored. Registering after
// Start has been called is not supported and should be avoided by the
// caller; the engine does not guard against it.
func (e *Engine) Register(a Analyzer) {
	if a == nil {
		return
	}
	a.Configure(e.config)

	e.mu.Lock()
	e.analyzers = append(e.analyzers, a)
	e.mu.Unlock()
}

// Start transitions the engine from stopped to running and spawns exactly
// one worker goroutine. It returns false without effect if the engine was
// already running.
func (e *Engine) Start() bool {
	if !e.running.CompareAndSwap(false, true) {
		return false
	}

	e.done = make(chan struct{})
	e.wg.Add(1)
	go e.workerLoop(e.done)
	return true
}

// Stop signals the worker to exit and blocks until it has. It is
// idempotent: calling Stop on an already-stopped engine is a no-op.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.done)
	e.wg.Wait()
}

// IsRunning reports whether the worker goroutine is currently active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Reset calls Reset on every registered analyzer, in registration order.
func (e *Engine) Reset() {
	e.mu.Lock()
	analyzers := append([]Analyzer(nil), e.analyzers...)
	e.mu.Unlock()

	for _, a := range analyzers {
		a.Reset()
	}
}

// Get returns the first registered analyzer assignable to T, for a
// consumer that wants a typed handle to read results from. The zero value
// and false are returned if none match.
func Get[T Analyzer](e *Engine) (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.analyzers {
		if typed, ok := a.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

func (e *Engine) workerLoop(done <-chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		default:
		}

		if e.ring.AvailableRead() < len(e.scratch) {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			continue
		}

		n := e.ring.Read(e.scratch)
		if n < len(e.scratch) {
			// Short read despite AvailableRead's promise: treat as
			// starvation and retry rather than dispatching a partial frame.
			continue
		}

		e.dispatch(e.scratch)
	}
}

func (e *Engine) dispatch(frame []float32) {
	e.mu.Lock()
	analyzers := e.analyzers
	e.mu.Unlock()

	for _, a := range analyzers {
		e.processOne(a, frame)
	}
}

// processOne invokes a single analyzer's ProcessFrame, recovering from any
// panic so that one faulty analyzer never takes down the worker loop or
// starves the remaining analyzers of that frame.
func (e *Engine) processOne(a Analyzer, frame []float32) {
	defer func() {
		if r := recover(); r != nil {
			applog.Errorf("analysis: analyzer %T panicked processing frame: %v", a, r)
		}
	}()
	a.ProcessFrame(frame)
}
