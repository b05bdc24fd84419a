// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"guitardiag/internal/analysis"
	applog "guitardiag/internal/log"
)

// Publisher periodically fetches the latest snapshot from the three
// diagnostic analyzers, packs them into a fixed binary format, and sends
// them over UDP using a Sender. It runs in a background goroutine between
// Start and Stop.
type Publisher struct {
	sender       *Sender
	fretBuzz     *analysis.FretBuzzAnalyzer
	intonation   *analysis.IntonationAnalyzer
	stringHealth *analysis.StringHealthAnalyzer
	interval     time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	sequenceNum uint32
	packetBuf   *bytes.Buffer
}

// NewPublisher creates a Publisher over the given analyzers. Any of the
// three analyzers may be nil if that diagnostic was never registered with
// the engine; its block is then sent zeroed. interval <= 0 defaults to
// ~60Hz.
func NewPublisher(interval time.Duration, sender *Sender, fretBuzz *analysis.FretBuzzAnalyzer, intonation *analysis.IntonationAnalyzer, stringHealth *analysis.StringHealthAnalyzer) *Publisher {
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("udp: invalid publish interval, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		fretBuzz:     fretBuzz,
		intonation:   intonation,
		stringHealth: stringHealth,
		interval:     interval,
		packetBuf:    new(bytes.Buffer),
	}
}

// Start begins the periodic publish loop. Safe to call once; a second call
// while already running is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("udp: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publish loop to exit and waits for it. Idempotent.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

/*
UDP Packet Structure (BigEndian)

+----------------------------------------------------------------------+
| Field             | Type     | Bytes | Description                   |
|-------------------|----------|-------|-------------------------------|
| Sequence Number   | uint32   | 4     | Monotonically increasing      |
| Timestamp         | int64    | 8     | Nanoseconds since epoch       |
| FretBuzz block    | 4*f32+u8 | 17    | buzz/transient/hf/inharm/onset|
| Intonation block  | u8+3*f32+u8 | 14 | state/open/fretted/dev/inTune |
| StringHealth block| 4*f32    | 16    | health/decay/f0/inharmonicity |
+----------------------------------------------------------------------+

This mirrors the original FFT-magnitude packet's framing (sequence number,
timestamp, fixed payload) but carries analysis results instead of raw
spectrum magnitudes.
*/
func (p *Publisher) buildAndSendPacket() {
	p.sequenceNum++
	timestamp := time.Now().UnixNano()

	p.packetBuf.Reset()

	var err error
	write := func(v any) {
		if err != nil {
			return
		}
		err = binary.Write(p.packetBuf, binary.BigEndian, v)
	}

	write(p.sequenceNum)
	write(timestamp)

	fb := analysis.FretBuzzResult{}
	if p.fretBuzz != nil {
		fb = p.fretBuzz.LatestResult()
	}
	write(float32(fb.BuzzScore))
	write(float32(fb.TransientScore))
	write(float32(fb.HighFreqEnergyScore))
	write(float32(fb.InharmonicityScore))
	write(fb.OnsetDetected)

	it := analysis.IntonationResult{}
	if p.intonation != nil {
		it = p.intonation.LatestResult()
	}
	write(uint8(it.State))
	write(float32(it.OpenStringFrequency))
	write(float32(it.FrettedStringFrequency))
	write(float32(it.CentDeviation))
	write(it.IsInTune)

	sh := analysis.StringHealthResult{}
	if p.stringHealth != nil {
		sh = p.stringHealth.LatestResult()
	}
	write(float32(sh.HealthScore))
	write(float32(sh.DecayRate))
	write(float32(sh.FundamentalFrequency))
	write(float32(sh.Inharmonicity))

	if err != nil {
		applog.Errorf("udp: error packing packet %d: %v", p.sequenceNum, err)
		return
	}

	if err := p.sender.Send(p.packetBuf.Bytes()); err != nil {
		applog.Errorf("udp: error sending packet %d: %v", p.sequenceNum, err)
		return
	}
	applog.Debugf("udp: sent packet %d (%d bytes)", p.sequenceNum, p.packetBuf.Len())
}

// Close stops the publish loop.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
