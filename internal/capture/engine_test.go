package capture

import "testing"

// TestBranchlessAbsPerformance verifies the branchless absolute value
// calculation used on the hot path allocates nothing.
func TestBranchlessAbsPerformance(t *testing.T) {
	samples := make([]int32, 1024)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = int32(i * 1000)
		} else {
			samples[i] = int32(-i * 1000)
		}
	}

	allocs := testing.AllocsPerRun(100, func() {
		for i, sample := range samples {
			mask := sample >> 31
			samples[i] = (sample ^ mask) - mask
		}
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in branchless abs, got %.1f", allocs)
	}
}

// TestProcessBufferHotPathAllocations exercises the full gate-and-forward
// path an Engine runs per callback and asserts it never allocates.
func TestProcessBufferHotPathAllocations(t *testing.T) {
	e := &Engine{
		config:        testAudioConfig(),
		ring:          newTestRing(),
		monoBuffer:    make([]float32, testFrameSize),
		gateEnabled:   true,
		gateThreshold: lowThreshold,
	}

	allocs := testing.AllocsPerRun(100, func() {
		e.processBuffer(testBuffer)
	})

	if allocs > 0 {
		t.Errorf("processBuffer allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkProcessBufferHotPath(b *testing.B) {
	e := &Engine{
		config:        testAudioConfig(),
		ring:          newTestRing(),
		monoBuffer:    make([]float32, testFrameSize),
		gateEnabled:   true,
		gateThreshold: lowThreshold,
	}

	b.ReportAllocs()
	for b.Loop() {
		e.processBuffer(testBuffer)
	}
}
