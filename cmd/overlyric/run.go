package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/overlyric/internal/config"
	"karolbroda.com/overlyric/internal/logging"
	"karolbroda.com/overlyric/internal/metrics"
	"karolbroda.com/overlyric/internal/pipeline"
	"karolbroda.com/overlyric/internal/player"
	"karolbroda.com/overlyric/internal/syncer"
	"karolbroda.com/overlyric/internal/terminal"
	"karolbroda.com/overlyric/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the lyric overlay",
	Long:  `starts polling the media player and shows the current lyric line as it plays.`,
	RunE:  runOverlay,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOverlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	caps := terminal.DetectCapabilities()
	overlay := useOverlay(cfg, caps)

	// the overlay owns the terminal, so logs go to a file
	logger, closer, err := logging.SetupLogger(cfg.Log, overlay)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	playerService, err := player.NewService(bus, cfg.MprisService)
	if err != nil {
		return fmt.Errorf("failed to create player service: %w", err)
	}

	res, err := newResolver(cfg, logger)
	if err != nil {
		return err
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		return err
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	syncOpts := syncer.DefaultOptions()
	syncOpts.PauseCorrection = cfg.PauseCorrection()
	syncOpts.SeekThreshold = cfg.SeekThreshold()
	syncOpts.Offset = cfg.SyncOffsetDuration()
	syncOpts.TwoLine = cfg.Display.TwoLine

	opts := pipeline.Options{
		PollInterval:     cfg.PollInterval(),
		NoSessionBackoff: cfg.NoSessionBackoff(),
		ResyncOnStart:    cfg.ResyncOnStart,
		SettleDelay:      cfg.SettleDelay(),
		Sync:             syncOpts,
		Logger:           logger,
	}

	logger.Info("Starting overlay",
		"service", cfg.MprisService,
		"lrclib", cfg.LrclibURL,
		"cache", cfg.Cache.Enabled,
		"overlay", overlay,
	)

	if !overlay {
		runner := pipeline.New(playerService, ui.NewPlainDisplay(os.Stdout, caps.TrueColor), res, extractor, opts)
		return runner.Run(ctx)
	}

	defer terminal.Reset()

	var runner *pipeline.Runner
	model := ui.NewModel(ui.ModelConfig{
		Nudge:         func(d time.Duration) { runner.Nudge(d) },
		HideSecondary: !cfg.Display.TwoLine,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	runner = pipeline.New(playerService, ui.NewProgramDisplay(p), res, extractor, opts)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(runCtx)
	}()

	_, err = p.Run()
	cancel()
	if runErr := <-done; runErr != nil {
		logger.Error("Pipeline stopped", "error", runErr)
	}

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running bubble tea: %w", err)
	}
	return nil
}

func useOverlay(cfg *config.Config, caps *terminal.Capabilities) bool {
	switch cfg.Display.Mode {
	case "overlay":
		return true
	case "plain":
		return false
	default:
		return caps.Interactive
	}
}
