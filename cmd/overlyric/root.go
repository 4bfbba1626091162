package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/overlyric/internal/config"
)

var (
	// global flags
	configFile   string
	mprisService string
	syncOffset   float64
	lrclibURL    string
	noCache      bool
	plainOutput  bool
	resync       bool
	logLevel     string
	metricsAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "overlyric",
	Short: "now-playing lyric overlay",
	Long: `overlyric shows the current line of time-synced lyrics for whatever is playing
on an mpris media player, themed with colors taken from the album artwork.

when run without a subcommand, it starts the overlay.`,
	Version: "0.3.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverlay(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/overlyric/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&mprisService, "mpris-service", "m", "", "mpris service name (e.g., org.mpris.MediaPlayer2.spotify)")
	rootCmd.PersistentFlags().Float64VarP(&syncOffset, "sync-offset", "s", 0, "sync offset in seconds applied to new tracks")
	rootCmd.PersistentFlags().StringVar(&lrclibURL, "lrclib-url", "", "custom lrclib api url")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the lyrics cache")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "print lines to stdout instead of drawing the overlay")
	rootCmd.PersistentFlags().BoolVar(&resync, "resync", false, "pause and resume the player once on startup")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g., :9464)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers files and environment, then the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("mpris-service") {
		cfg.MprisService = mprisService
	}
	if flags.Changed("lrclib-url") {
		cfg.LrclibURL = lrclibURL
	}
	if flags.Changed("sync-offset") {
		cfg.SyncOffset = syncOffset
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("plain") && plainOutput {
		cfg.Display.Mode = "plain"
	}
	if flags.Changed("resync") {
		cfg.ResyncOnStart = resync
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
