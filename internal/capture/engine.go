// SPDX-License-Identifier: MIT
package capture

import (
	"math"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"guitardiag/internal/config"
	applog "guitardiag/internal/log"
	"guitardiag/internal/ring"
)

// Engine owns the PortAudio input stream and forwards accepted blocks into a
// SampleRing as normalized mono float32 samples.
//
// Thread Safety:
//   - processInputStream runs on PortAudio's dedicated callback thread
//   - Pre-allocates every buffer it touches to avoid GC in the hot path
//   - peakAmplitude is published via atomic store/load for cross-thread reads
type Engine struct {
	config config.AudioConfig
	ring   *ring.SampleRing

	inputBuffer []int32
	monoBuffer  []float32

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	gateEnabled   bool
	gateThreshold int32 // Absolute amplitude threshold (0-2147483647)

	peakAmplitude atomic.Uint64 // math.Float64bits of the most recent block RMS, 0..1

	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer
}

// NewEngine resolves the configured input device and pre-allocates every
// buffer the audio callback will touch.
func NewEngine(cfg config.AudioConfig, r *ring.SampleRing) (*Engine, error) {
	device, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	inputSize := cfg.FramesPerBuffer * cfg.Channels

	e := &Engine{
		config:        cfg,
		ring:          r,
		inputBuffer:   make([]int32, inputSize),
		monoBuffer:    make([]float32, cfg.FramesPerBuffer),
		inputDevice:   device,
		gateEnabled:   cfg.GateThreshold > 0,
		gateThreshold: int32(cfg.GateThreshold * float64(math.MaxInt32)),
	}

	if cfg.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}

	return e, nil
}

// Peak returns the RMS amplitude (0..1) of the most recently captured
// block, regardless of whether the noise gate accepted it.
func (e *Engine) Peak() float64 {
	return math.Float64frombits(e.peakAmplitude.Load())
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		return err
	}
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream == nil {
		return nil
	}
	if err := e.inputStream.Stop(); err != nil {
		return err
	}
	if err := e.inputStream.Close(); err != nil {
		return err
	}
	e.inputStream = nil
	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
//   - Runs on a dedicated OS thread (LockOSThread)
//   - Uses pre-allocated buffers only
//   - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer)

	if atomic.LoadInt32(&e.isRecording) == 1 && e.wavEncoder != nil {
		for i, sample := range e.inputBuffer {
			e.sampleBuf.Data[i] = int(sample)
		}
		e.sampleBuf.Data = e.sampleBuf.Data[:len(e.inputBuffer)]

		if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
			applog.Errorf("writing to WAV file: %v", err)
		}
	}
}

// processBuffer performs gating and ring forwarding in-place.
// Performance Critical (Hot Path):
//   - No allocations
//   - Branchless noise gate implementation
//   - Mono downmix and ring forwarding only when the gate opens
func (e *Engine) processBuffer(buffer []int32) {
	var maxAmplitude int32
	var sumSquares float64
	for _, sample := range buffer {
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff

		normalized := float64(sample) / float64(math.MaxInt32)
		sumSquares += normalized * normalized
	}
	rms := math.Sqrt(sumSquares / float64(len(buffer)))
	e.peakAmplitude.Store(math.Float64bits(rms))

	if e.gateEnabled && maxAmplitude <= e.gateThreshold {
		return
	}

	if e.config.Channels == 1 {
		for i, sample := range buffer {
			e.monoBuffer[i] = float32(sample) / float32(math.MaxInt32)
		}
	} else {
		for i := 0; i < e.config.FramesPerBuffer; i++ {
			idx := i * e.config.Channels
			if idx < len(buffer) {
				e.monoBuffer[i] = float32(buffer[idx]) / float32(math.MaxInt32)
			} else {
				e.monoBuffer[i] = 0
			}
		}
	}

	e.ring.Write(e.monoBuffer)
}
