package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"guitardiag/internal/config"
	"guitardiag/pkg/build"
)

// ParseArgs loads configuration from an optional YAML file, then layers CLI
// flag overrides on top of it, and returns the fully validated result.
func ParseArgs(args []string) (*config.Config, error) {
	var (
		configPath      string
		deviceID        int
		channels        int
		sampleRate      float64
		framesPerBuffer int
		lowLatency      bool
		record          bool
		transportKind   string
		verbose         bool
	)

	var cfg *config.Config

	info := build.GetBuildFlags()
	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Real-time guitar diagnostics over a live audio input",
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			if cmd.Flags().Changed("device") {
				cfg.Audio.InputDevice = deviceID
			}
			if cmd.Flags().Changed("channels") {
				cfg.Audio.Channels = channels
			}
			if cmd.Flags().Changed("sample-rate") {
				cfg.Audio.SampleRate = sampleRate
			}
			if cmd.Flags().Changed("frames-per-buffer") {
				cfg.Audio.FramesPerBuffer = framesPerBuffer
			}
			if cmd.Flags().Changed("low-latency") {
				cfg.Audio.LowLatency = lowLatency
			}
			if cmd.Flags().Changed("record") {
				cfg.Recording.Enabled = record
			}
			if cmd.Flags().Changed("transport") {
				cfg.Transport.Kind = transportKind
			}
			cfg.Verbose = verbose

			return cfg.Validate()
		},
		RunE: func(*cobra.Command, []string) error {
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().IntVarP(&deviceID, "device", "d", config.MinDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&channels, "channels", "c", 1, "Number of input channels")
	rootCmd.PersistentFlags().Float64VarP(&sampleRate, "sample-rate", "s", 48000, "Sample rate in Hz")
	rootCmd.PersistentFlags().IntVarP(&framesPerBuffer, "frames-per-buffer", "b", 2048, "Frames per PortAudio buffer")
	rootCmd.PersistentFlags().BoolVarP(&lowLatency, "low-latency", "l", false, "Use the device's low-latency input path")
	rootCmd.PersistentFlags().BoolVarP(&record, "record", "r", false, "Record the raw input stream to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&transportKind, "transport", "t", "logging", "Outbound transport: logging, websocket, or udp")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		RunE: func(*cobra.Command, []string) error {
			cfg.Command = "list"
			return nil
		},
	}
	rootCmd.AddCommand(listCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(*cobra.Command, []string) error {
			fmt.Printf("%s %s (commit %s, built %s)\n", info.Name, info.Version, info.Commit, info.Time)
			cfg.Command = "version"
			return nil
		},
	}
	rootCmd.AddCommand(versionCmd)

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}
