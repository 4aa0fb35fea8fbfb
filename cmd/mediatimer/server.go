package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/mediatimer/internal/api"
	"github.com/goodtune/mediatimer/internal/clock"
	"github.com/goodtune/mediatimer/internal/config"
	"github.com/goodtune/mediatimer/internal/metrics"
	"github.com/goodtune/mediatimer/internal/systemd"
	"github.com/goodtune/mediatimer/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the timer daemon",
	Long:  `Run the timer with the local HTTP control API and the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting mediatimer")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	tracker, store, err := openTracker(context.Background(), cfg, clock.RealTicker{Period: cfg.Timer.TickPeriod()}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	tracker.Subscribe(eventLogger(logger))

	resetScheduler := usage.NewResetScheduler(tracker, nil, logger)
	resetScheduler.Start()

	// Initialize API Server
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := api.NewServer(api.Config{ListenAddr: apiAddr}, tracker, logger)
	if sdListeners.Activated && sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API Server: %w", err)
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsEnabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	// Log level follows edits to the config file
	config.Watch(configPath, func(next *config.Config, err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("Ignoring invalid configuration change")
			return
		}
		zerolog.SetGlobalLevel(parseLevel(next.Logging.Level))
		logger.Info().Str("level", next.Logging.Level).Msg("Configuration reloaded")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go systemd.RunWatchdog(ctx, logger)

	logger.Info().Msgf("Control API: http://%s/api/status", apiAddr)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	resetScheduler.Stop()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API Server")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := tracker.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to save running session")
	}

	logger.Info().Msg("mediatimer stopped")
	return nil
}

// eventLogger logs alert-worthy events for a headless daemon.
func eventLogger(logger zerolog.Logger) usage.Listener {
	logger = logger.With().Str("component", "events").Logger()
	return usage.ListenerFunc(func(e usage.Event) {
		switch e := e.(type) {
		case usage.ImminentBreak:
			logger.Debug().Int64("seconds", e.SecondsUntilBreak).Msg("Break imminent")
		case usage.ImminentLimit:
			logger.Debug().Str("category", string(e.Category)).Int64("seconds", e.RemainingSeconds).Msg("Limit imminent")
		case usage.BreakDue:
			logger.Info().Int64("elapsed_seconds", e.ElapsedSeconds).Msg("Break due")
		case usage.LimitReached:
			logger.Info().Str("category", string(e.Category)).Msg("Limit reached")
		}
	})
}
