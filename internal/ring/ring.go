// Package ring provides a single-producer/single-consumer lock-free FIFO of
// audio samples, used to bridge a hard real-time audio callback to a
// best-effort worker goroutine. It allocates once at construction and never
// again: no locks, no channels, no allocation on the hot path.
package ring

import "sync/atomic"

// SampleRing is a bounded circular buffer of float32 samples shared by
// exactly one producer and one consumer. The backing array has capacity+1
// slots so that writeIdx == readIdx is unambiguously "empty" without a
// separate counter.
//
// The producer is the sole writer of writeIdx; the consumer is the sole
// writer of readIdx. Each side loads the other's index with an Acquire-style
// atomic load and stores its own with a Release-style atomic store. Go's
// sync/atomic loads and stores on aligned words are sequentially consistent,
// which is a strictly stronger guarantee than the acquire/release pairing
// this algorithm requires, so the SPSC handoff is safe.
type SampleRing struct {
	buf      []float32
	capacity uint64 // usable capacity; len(buf) == capacity+1
	writeIdx atomic.Uint64
	readIdx  atomic.Uint64
}

// NewSampleRing allocates a ring holding up to capacity samples. capacity
// must be positive; a non-positive value is treated as 1 to avoid an
// unusable zero-capacity ring.
func NewSampleRing(capacity int) *SampleRing {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleRing{
		buf:      make([]float32, capacity+1),
		capacity: uint64(capacity),
	}
}

// Capacity returns the usable capacity in samples.
func (r *SampleRing) Capacity() int {
	return int(r.capacity)
}

// Write copies all of data into the ring if there is room for it, and
// returns true. If the ring does not have enough writable space for the
// whole of data, it writes nothing and returns false: this is the defined
// backpressure signal, not an error. Write never blocks and never
// allocates. It must only be called from the producer.
func (r *SampleRing) Write(data []float32) bool {
	if len(data) == 0 {
		return true
	}

	writeIdx := r.writeIdx.Load()
	readIdx := r.readIdx.Load()

	readable := r.readableBetween(writeIdx, readIdx)
	writable := r.capacity - readable
	if uint64(len(data)) > writable {
		return false
	}

	modLen := uint64(len(r.buf))
	pos := writeIdx
	for _, s := range data {
		r.buf[pos] = s
		pos++
		if pos == modLen {
			pos = 0
		}
	}

	r.writeIdx.Store(pos)
	return true
}

// Read drains up to len(out) samples into out, in the order they were
// written, and returns the number actually read. It never blocks and
// returns 0 if the ring is empty. It must only be called from the consumer.
func (r *SampleRing) Read(out []float32) int {
	if len(out) == 0 {
		return 0
	}

	readIdx := r.readIdx.Load()
	writeIdx := r.writeIdx.Load()

	readable := r.readableBetween(writeIdx, readIdx)
	count := readable
	if uint64(len(out)) < count {
		count = uint64(len(out))
	}
	if count == 0 {
		return 0
	}

	modLen := uint64(len(r.buf))
	pos := readIdx
	for i := uint64(0); i < count; i++ {
		out[i] = r.buf[pos]
		pos++
		if pos == modLen {
			pos = 0
		}
	}

	r.readIdx.Store(pos)
	return int(count)
}

// AvailableRead returns the number of samples currently available to read.
// Under concurrent writes this is a lower bound at the instant of the call.
func (r *SampleRing) AvailableRead() int {
	writeIdx := r.writeIdx.Load()
	readIdx := r.readIdx.Load()
	return int(r.readableBetween(writeIdx, readIdx))
}

// AvailableWrite returns the number of samples that could be written right
// now without the ring reporting backpressure.
func (r *SampleRing) AvailableWrite() int {
	return int(r.capacity) - r.AvailableRead()
}

func (r *SampleRing) readableBetween(writeIdx, readIdx uint64) uint64 {
	modLen := uint64(len(r.buf))
	if writeIdx >= readIdx {
		return writeIdx - readIdx
	}
	return modLen - readIdx + writeIdx
}
