package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"guitardiag/cmd"
	"guitardiag/internal/analysis"
	"guitardiag/internal/capture"
	"guitardiag/internal/config"
	applog "guitardiag/internal/log"
	"guitardiag/internal/ring"
	"guitardiag/internal/transport"
	"guitardiag/internal/transport/udp"
	"guitardiag/pkg/build"
)

// renderInterval paces the logging and WebSocket sinks; the UDP publisher
// paces itself off config.Transport.UDPSendInterval instead.
const renderInterval = 50 * time.Millisecond

// main is the entry point. Program flow is divided into three phases:
//
// 1. Startup (cold path): build info, config, PortAudio, the ring, the
//    analysis engine and its analyzers, and the outbound transport.
// 2. Run (hot path): start capture and the engine, block on SIGINT/SIGTERM.
// 3. Shutdown (cold path): stop the engine, close the capture stream, then
//    close the transport, in that order.
func main() {
	if err := build.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Debug || cfg.Verbose {
		applog.SetLevel(applog.LevelDebug)
	} else if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	info := build.GetBuildFlags()
	applog.Infof("%s %s (commit %s, built %s)", info.Name, info.Version, info.Commit, info.Time)

	if err := capture.Initialize(); err != nil {
		applog.Errorf("initializing audio subsystem: %v", err)
		os.Exit(1)
	}
	defer capture.Terminate()

	switch cfg.Command {
	case "list":
		if err := capture.ListDevices(); err != nil {
			applog.Errorf("listing devices: %v", err)
			os.Exit(1)
		}
		return
	case "version":
		return
	}

	run(cfg)
}

func run(cfg *config.Config) {
	r := ring.NewSampleRing(cfg.Analysis.RingCapacity)

	captureEngine, err := capture.NewEngine(cfg.Audio, r)
	if err != nil {
		applog.Errorf("creating capture engine: %v", err)
		os.Exit(1)
	}

	engine := analysis.NewEngine(r, analysis.Config{
		SampleRate: cfg.Audio.SampleRate,
		FrameSize:  cfg.Analysis.FrameSize,
	})
	fretBuzz := analysis.NewFretBuzzAnalyzer()
	intonation := analysis.NewIntonationAnalyzer()
	stringHealth := analysis.NewStringHealthAnalyzer()
	engine.Register(fretBuzz)
	engine.Register(intonation)
	engine.Register(stringHealth)

	sink, publisher, err := buildOutbound(cfg, fretBuzz, intonation, stringHealth)
	if err != nil {
		applog.Errorf("building outbound transport: %v", err)
		os.Exit(1)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	if !engine.Start() {
		applog.Errorf("analysis engine failed to start")
		os.Exit(1)
	}

	if err := captureEngine.StartInputStream(); err != nil {
		applog.Errorf("starting input stream: %v", err)
		os.Exit(1)
	}

	var recordingPath string
	if cfg.Recording.Enabled {
		recordingPath = filepath.Join(cfg.Recording.OutputDir, "recording-"+time.Now().UTC().Format("02-01-2006-150405")+".wav")
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			applog.Errorf("creating recording directory: %v", err)
		} else if err := captureEngine.StartRecording(recordingPath); err != nil {
			applog.Errorf("starting recording: %v", err)
		}
	}

	renderDone := make(chan struct{})
	if publisher != nil {
		publisher.Start()
	} else {
		go renderLoop(renderDone, sink, fretBuzz, intonation, stringHealth)
	}

	applog.Infof("running; press Ctrl+C to stop")
	<-done

	// ==================== SHUTDOWN PHASE ====================
	engine.Stop()

	if cfg.Recording.Enabled {
		if err := captureEngine.StopRecording(); err != nil {
			applog.Errorf("stopping recording: %v", err)
		} else {
			applog.Infof("recording saved to %s", recordingPath)
		}
	}
	if err := captureEngine.StopInputStream(); err != nil {
		applog.Errorf("stopping input stream: %v", err)
	}

	if publisher != nil {
		publisher.Close()
	} else {
		close(renderDone)
	}
	if err := sink.Close(); err != nil {
		applog.Errorf("closing transport: %v", err)
	}
}

// buildOutbound constructs the configured outbound sink. For "udp" it
// returns a self-ticking Publisher and a LoggingTransport placeholder sink
// (closed but otherwise unused); for "logging"/"websocket" it returns the
// corresponding Transport and a nil Publisher.
func buildOutbound(cfg *config.Config, fb *analysis.FretBuzzAnalyzer, it *analysis.IntonationAnalyzer, sh *analysis.StringHealthAnalyzer) (transport.Transport, *udp.Publisher, error) {
	switch cfg.Transport.Kind {
	case "websocket":
		return transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr), nil, nil
	case "udp":
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, nil, err
		}
		publisher := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, fb, it, sh)
		return transport.NewLoggingTransport(), publisher, nil
	default:
		return transport.NewLoggingTransport(), nil, nil
	}
}

// renderLoop periodically builds a Snapshot from the three analyzers and
// sends it to sink, until done is closed.
func renderLoop(done <-chan struct{}, sink transport.Transport, fb *analysis.FretBuzzAnalyzer, it *analysis.IntonationAnalyzer, sh *analysis.StringHealthAnalyzer) {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snapshot := transport.Snapshot{
				Timestamp:    time.Now(),
				FretBuzz:     fb.LatestResult(),
				Intonation:   it.LatestResult(),
				StringHealth: sh.LatestResult(),
			}
			if err := sink.Send(snapshot); err != nil {
				applog.Errorf("sending snapshot: %v", err)
			}
		}
	}
}
