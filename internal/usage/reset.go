package usage

import (
	"context"
	"time"

	"github.com/goodtune/mediatimer/internal/clock"
	"github.com/rs/zerolog"
)

// Roller is implemented by Tracker.
type Roller interface {
	Rollover(ctx context.Context) error
}

// ResetScheduler calls Rollover shortly after each local midnight so that
// budgets and retention follow the calendar day while the process runs.
type ResetScheduler struct {
	target   Roller
	clock    clock.Clock
	logger   zerolog.Logger
	stopChan chan struct{}
}

// NewResetScheduler creates a new reset scheduler
func NewResetScheduler(target Roller, clk clock.Clock, logger zerolog.Logger) *ResetScheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ResetScheduler{
		target:   target,
		clock:    clk,
		logger:   logger.With().Str("component", "reset-scheduler").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the reset scheduler
func (rs *ResetScheduler) Start() {
	go rs.run()
	rs.logger.Info().Msg("Daily rollover scheduler started")
}

// Stop stops the reset scheduler
func (rs *ResetScheduler) Stop() {
	close(rs.stopChan)
	rs.logger.Info().Msg("Daily rollover scheduler stopped")
}

func (rs *ResetScheduler) run() {
	for {
		nextReset := rs.calculateNextReset()
		waitDuration := nextReset.Sub(rs.clock.Now())

		rs.logger.Debug().
			Time("next_reset", nextReset).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next daily rollover")

		select {
		case <-time.After(waitDuration):
			rs.performReset()
		case <-rs.stopChan:
			return
		}
	}
}

// calculateNextReset returns one second past the next local midnight.
func (rs *ResetScheduler) calculateNextReset() time.Time {
	now := rs.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 1, 0, now.Location())
	if !now.Before(midnight) {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return midnight
}

func (rs *ResetScheduler) performReset() {
	rs.logger.Info().Msg("Performing daily rollover")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rs.target.Rollover(ctx); err != nil {
		rs.logger.Error().Err(err).Msg("Daily rollover failed")
	}
}
