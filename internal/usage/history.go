package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/mediatimer/internal/metrics"
	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/goodtune/mediatimer/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const dayLayout = "2006-01-02"

// History is the append-only log of completed sessions. It is not safe for
// concurrent use; the Tracker serializes access.
type History struct {
	store    storage.HistoryStore
	sessions []Session
	days     *lru.Cache[string, policy.Totals] // past days only
	logger   zerolog.Logger
}

// NewHistory creates an empty history backed by store.
func NewHistory(store storage.HistoryStore, logger zerolog.Logger) *History {
	days, _ := lru.New[string, policy.Totals](16)
	return &History{
		store:  store,
		days:   days,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Load replaces the in-memory log with the stored one and prunes expired
// sessions, persisting the result if anything was dropped. A corrupt record
// leaves the history empty and the returned error wraps
// storage.ErrCorruptState.
func (h *History) Load(ctx context.Context, now time.Time) error {
	h.sessions = nil
	h.days.Purge()

	recs, err := h.store.Get(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case errors.Is(err, storage.ErrCorruptState):
		metrics.StorageErrors.WithLabelValues("load_history").Inc()
		h.logger.Warn().Err(err).Msg("Stored history is corrupt, starting empty")
		return err
	case err != nil:
		metrics.StorageErrors.WithLabelValues("load_history").Inc()
		return fmt.Errorf("failed to load history: %w", err)
	}

	h.sessions = make([]Session, 0, len(recs))
	for _, r := range recs {
		h.sessions = append(h.sessions, fromRecord(r))
	}

	if pruned := h.Prune(now); pruned > 0 {
		h.logger.Info().Int("pruned", pruned).Msg("Dropped sessions past retention")
		return h.persist(ctx)
	}
	return nil
}

// Record appends s and persists the log. A failed write leaves s in memory;
// it is written out with the next successful persist.
func (h *History) Record(ctx context.Context, s Session) error {
	h.sessions = append(h.sessions, s)
	h.days.Purge()

	source := "timer"
	if s.Manual {
		source = "manual"
	}
	metrics.SessionsRecorded.WithLabelValues(string(s.Category), source).Inc()
	metrics.SessionSecondsTotal.WithLabelValues(string(s.Category)).Add(float64(s.Duration))

	h.logger.Info().
		Str("category", string(s.Category)).
		Int64("duration_seconds", s.Duration).
		Bool("manual", s.Manual).
		Msg("Recorded session")

	return h.persist(ctx)
}

// DailyTotals sums the sessions that fall on now's local calendar day.
func (h *History) DailyTotals(now time.Time) policy.Totals {
	return h.totalsFor(dayKey(now, now.Location()), now.Location())
}

// Today returns the sessions recorded on now's calendar day, oldest first.
func (h *History) Today(now time.Time) []Session {
	key := dayKey(now, now.Location())
	out := make([]Session, 0)
	for _, s := range h.sessions {
		if dayKey(s.Timestamp, now.Location()) == key {
			out = append(out, s)
		}
	}
	return out
}

// Days reports per-day totals for the last n calendar days, today first.
func (h *History) Days(now time.Time, n int) []DayReport {
	loc := now.Location()
	reports := make([]DayReport, 0, n)
	for i := 0; i < n; i++ {
		day := now.AddDate(0, 0, -i)
		key := dayKey(day, loc)

		// Today keeps changing; only settled days are cached.
		if i > 0 {
			if totals, ok := h.days.Get(key); ok {
				reports = append(reports, DayReport{Date: key, Totals: totals})
				continue
			}
		}

		totals := h.totalsFor(key, loc)
		if i > 0 {
			h.days.Add(key, totals)
		}
		reports = append(reports, DayReport{Date: key, Totals: totals})
	}
	return reports
}

// Prune drops sessions older than the retention period and returns how
// many were removed. It does not persist.
func (h *History) Prune(now time.Time) int {
	kept := h.sessions[:0]
	for _, s := range h.sessions {
		if now.Sub(s.Timestamp) <= RetentionPeriod {
			kept = append(kept, s)
		}
	}

	pruned := len(h.sessions) - len(kept)
	h.sessions = kept
	if pruned > 0 {
		h.days.Purge()
	}
	return pruned
}

// Clear empties the log and removes the stored record.
func (h *History) Clear(ctx context.Context) error {
	h.sessions = nil
	h.days.Purge()

	if err := h.store.Delete(ctx); err != nil {
		metrics.StorageErrors.WithLabelValues("clear_history").Inc()
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Sessions returns a copy of the whole log.
func (h *History) Sessions() []Session {
	return append([]Session(nil), h.sessions...)
}

// Persist writes the current log to the store.
func (h *History) Persist(ctx context.Context) error {
	return h.persist(ctx)
}

func (h *History) persist(ctx context.Context) error {
	recs := make([]storage.SessionRecord, len(h.sessions))
	for i, s := range h.sessions {
		recs[i] = toRecord(s)
	}

	if err := h.store.Put(ctx, recs); err != nil {
		metrics.StorageErrors.WithLabelValues("save_history").Inc()
		h.logger.Error().Err(err).Int("sessions", len(recs)).Msg("Failed to persist history")
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

func (h *History) totalsFor(key string, loc *time.Location) policy.Totals {
	var totals policy.Totals
	for _, s := range h.sessions {
		if dayKey(s.Timestamp, loc) == key {
			totals = totals.Add(s.Category, s.Duration)
		}
	}
	return totals
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

func toRecord(s Session) storage.SessionRecord {
	return storage.SessionRecord{
		Date:        storage.Timestamp(s.Timestamp),
		Duration:    s.Duration,
		ContentType: string(s.Category),
		IsManual:    s.Manual,
	}
}

func fromRecord(r storage.SessionRecord) Session {
	r.Normalize()
	return Session{
		Timestamp: r.Date.Time().Local(),
		Duration:  r.Duration,
		Category:  policy.Category(r.ContentType),
		Manual:    r.IsManual,
	}
}
