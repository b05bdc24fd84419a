// Package config loads and validates the application's runtime
// configuration: audio capture parameters, analysis parameters, recording
// options, and outbound transport selection.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MinDeviceID selects the system default input device.
const MinDeviceID = -1

// Config is the top-level application configuration, loaded from an
// optional YAML file and layered with environment and CLI overrides.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	Command  string `yaml:"command,omitempty"`

	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`

	Verbose bool `yaml:"-"` // CLI-only override, never persisted
}

// AudioConfig holds settings for audio capture.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`
	SampleRate      float64 `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	LowLatency      bool    `yaml:"low_latency"`
	Channels        int     `yaml:"channels"`
	GateThreshold   float64 `yaml:"gate_threshold"`
}

// AnalysisConfig holds settings for the analysis engine. FrameSize should
// equal each analyzer's internal FFT size (2048) in deployment, though the
// core does not enforce that equality.
type AnalysisConfig struct {
	FrameSize    int `yaml:"frame_size"`
	RingCapacity int `yaml:"ring_capacity"`
}

// RecordingConfig holds settings for optional raw-input WAV recording.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"`
}

// TransportConfig selects and configures the outbound renderer transport.
type TransportConfig struct {
	Kind             string        `yaml:"kind"` // "logging", "websocket", or "udp"
	WebSocketAddr    string        `yaml:"websocket_addr"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// Load reads configuration from the YAML file at path. If path is empty it
// searches default locations. If no file exists (at path or at any default
// location), built-in defaults are used. Environment overrides and
// validation are applied in every case.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		for _, candidate := range []string{"config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			SampleRate:      48000,
			FramesPerBuffer: 2048,
			LowLatency:      false,
			Channels:        1,
			GateThreshold:   0.0,
		},
		Analysis: AnalysisConfig{
			FrameSize:    2048,
			RingCapacity: 2048 * 8,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			Kind:              "logging",
			WebSocketAddr:     ":8080",
			UDPTargetAddress:  "127.0.0.1:9090",
			UDPSendInterval:   33 * time.Millisecond,
		},
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside the ring or the analysis engine.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}
	if c.Analysis.FrameSize <= 0 {
		return fmt.Errorf("analysis.frame_size must be positive")
	}
	if c.Analysis.RingCapacity < c.Analysis.FrameSize {
		return fmt.Errorf("analysis.ring_capacity must be at least frame_size")
	}
	switch c.Transport.Kind {
	case "logging", "websocket", "udp":
	default:
		return fmt.Errorf("transport.kind %q is not one of logging, websocket, udp", c.Transport.Kind)
	}
	if c.Transport.Kind == "udp" && c.Transport.UDPSendInterval <= 0 {
		return fmt.Errorf("transport.udp_send_interval must be positive when transport.kind is udp")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("GUITARDIAG_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
	if val, ok := os.LookupEnv("GUITARDIAG_TRANSPORT_KIND"); ok {
		c.Transport.Kind = val
	}
	if val, ok := os.LookupEnv("GUITARDIAG_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("GUITARDIAG_UDP_SEND_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = d
		}
	}
}
