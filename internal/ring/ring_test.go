package ring

import (
	"sync"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	r := NewSampleRing(1024)

	data := []float32{1, 2, 3, 4, 5}
	if ok := r.Write(data); !ok {
		t.Fatalf("Write returned false for data within capacity")
	}

	out := make([]float32, 5)
	n := r.Read(out)
	if n != 5 {
		t.Fatalf("Read returned %d, want 5", n)
	}
	for i, v := range []float32{1, 2, 3, 4, 5} {
		if out[i] != v {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
	if got := r.AvailableRead(); got != 0 {
		t.Fatalf("AvailableRead() = %d, want 0", got)
	}
}

func TestWriteOverflow(t *testing.T) {
	r := NewSampleRing(1024)

	full := make([]float32, 1024)
	for i := range full {
		full[i] = 1.0
	}
	if ok := r.Write(full); !ok {
		t.Fatalf("Write of exactly capacity samples should succeed")
	}
	if ok := r.Write([]float32{1.0}); ok {
		t.Fatalf("Write past capacity should return false")
	}
	if got := r.AvailableRead(); got != 1024 {
		t.Fatalf("AvailableRead() = %d, want 1024", got)
	}
}

func TestEmptyViewSemantics(t *testing.T) {
	r := NewSampleRing(16)

	if ok := r.Write(nil); !ok {
		t.Fatalf("Write(nil) should be a no-op returning true")
	}
	if got := r.AvailableRead(); got != 0 {
		t.Fatalf("ring should remain empty after Write(nil), got AvailableRead()=%d", got)
	}

	if n := r.Read(nil); n != 0 {
		t.Fatalf("Read(nil) = %d, want 0", n)
	}
}

func TestAvailableReadWriteSumsToCapacity(t *testing.T) {
	r := NewSampleRing(100)

	for i := 0; i < 1000; i++ {
		r.Write([]float32{float32(i)})
		if i%3 == 0 {
			r.Read(make([]float32, 2))
		}
		if got := r.AvailableRead() + r.AvailableWrite(); got != r.Capacity() {
			t.Fatalf("AvailableRead()+AvailableWrite() = %d, want %d", got, r.Capacity())
		}
	}
}

func TestPartialRead(t *testing.T) {
	r := NewSampleRing(16)
	r.Write([]float32{1, 2, 3, 4, 5})

	out := make([]float32, 2)
	n := r.Read(out)
	if n != 2 || out[0] != 1 || out[1] != 2 {
		t.Fatalf("unexpected partial read result: n=%d out=%v", n, out)
	}
	if got := r.AvailableRead(); got != 3 {
		t.Fatalf("AvailableRead() = %d, want 3", got)
	}
}

func TestSPSCStress(t *testing.T) {
	const total = 10000
	r := NewSampleRing(37) // deliberately awkward, non-power-of-two capacity

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			for !r.Write([]float32{float32(i)}) {
				// backpressure: spin until the consumer drains
			}
		}
	}()

	results := make([]float32, 0, total)
	go func() {
		defer wg.Done()
		buf := make([]float32, 1)
		for len(results) < total {
			if n := r.Read(buf); n > 0 {
				results = append(results, buf[:n]...)
			}
		}
	}()

	wg.Wait()

	if len(results) != total {
		t.Fatalf("got %d samples, want %d", len(results), total)
	}
	for i, v := range results {
		if v != float32(i) {
			t.Fatalf("results[%d] = %v, want %v (out of order or dropped)", i, v, i)
		}
	}
}

func TestWriteAllocations(t *testing.T) {
	r := NewSampleRing(4096)
	data := []float32{1, 2, 3, 4}
	out := make([]float32, 4)

	allocs := testing.AllocsPerRun(1000, func() {
		r.Write(data)
		r.Read(out)
	})
	if allocs != 0 {
		t.Fatalf("Write/Read allocated %v times per run, want 0", allocs)
	}
}

func BenchmarkWriteRead(b *testing.B) {
	r := NewSampleRing(4096)
	data := make([]float32, 256)
	out := make([]float32, 256)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r.Write(data)
		r.Read(out)
	}
}
