package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goodtune/mediatimer/internal/clock"
	"github.com/goodtune/mediatimer/internal/config"
	"github.com/goodtune/mediatimer/internal/tui"
	"github.com/goodtune/mediatimer/internal/usage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var tuiLogFile string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the timer in the terminal",
	Long: `Run the timer interactively. Running time is saved when the program
exits. Storage must not be held by a running daemon.`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "Write logs to this file instead of discarding them")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.Nop()
	if tuiLogFile != "" {
		f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logger = setupLogger(cfg.Logging, f)
	}

	ctx := context.Background()
	tracker, store, err := openTracker(ctx, cfg, clock.RealTicker{Period: cfg.Timer.TickPeriod()}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	resetScheduler := usage.NewResetScheduler(tracker, nil, logger)
	resetScheduler.Start()
	defer resetScheduler.Stop()

	p := tea.NewProgram(tui.New(tracker, os.Stderr), tea.WithAltScreen())
	tracker.Subscribe(tui.Listener(p))

	_, runErr := p.Run()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tracker.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to save running session: %w", err)
	}

	return runErr
}
