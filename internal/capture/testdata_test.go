package capture

import (
	"fmt"
	"math"

	"guitardiag/internal/config"
	"guitardiag/internal/ring"
)

const (
	testSampleRate = 48000.0
	testFrameSize  = 1024

	lowThreshold  int32 = 1000000
	highThreshold int32 = 2000000000
)

var (
	testBuffer  = makeToneBuffer(testFrameSize, 50000000)
	quietBuffer = makeToneBuffer(testFrameSize, 100000)
	loudBuffer  = makeToneBuffer(testFrameSize, 2000000000)
)

// makeToneBuffer fills a buffer with a full-scale-relative sine so gate
// tests exercise the same branchless max-amplitude trick as the hot path.
func makeToneBuffer(n int, amplitude int32) []int32 {
	buf := make([]int32, n)
	for i := range buf {
		buf[i] = int32(float64(amplitude) * math.Sin(2*math.Pi*float64(i)/float64(n)))
	}
	return buf
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.3f", f)
}

func absFloat(f float64) float64 {
	return math.Abs(f)
}

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		InputDevice:     config.MinDeviceID,
		SampleRate:      testSampleRate,
		FramesPerBuffer: testFrameSize,
		Channels:        1,
	}
}

func newTestRing() *ring.SampleRing {
	return ring.NewSampleRing(testFrameSize * 4)
}
