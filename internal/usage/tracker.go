package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/mediatimer/internal/clock"
	"github.com/goodtune/mediatimer/internal/metrics"
	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/goodtune/mediatimer/internal/storage"
	"github.com/rs/zerolog"
)

const (
	triggerInterval = "interval"
	triggerStop     = "stop"
)

type stopReason int

const (
	stopManual stopReason = iota
	stopLimit
	stopShutdown
)

// Config holds tracker configuration
type Config struct {
	Clock           clock.Clock
	Ticker          clock.Ticker
	DefaultSettings policy.Settings
}

// Tracker owns the session timer, the break timer, the continuation memory
// and the history. Every mutating call is serialized on one mutex. Events
// are queued in commit order and delivered with no lock held, so a listener
// may block or call back into the tracker.
type Tracker struct {
	store    storage.Store
	history  *History
	clock    clock.Clock
	ticker   clock.Ticker
	defaults policy.Settings
	logger   zerolog.Logger

	mu       sync.Mutex
	settings policy.Settings
	phase    Phase
	session  SessionTimer
	brk      *BreakTimer // non-nil only in PhaseBreak
	memory   policy.Memory
	cadence  clock.Stopper
	gen      uint64 // invalidates callbacks from stopped cadences

	listeners   []Listener
	pending     []Event
	dispatching bool
}

// NewTracker creates a new tracker. Call Load before use.
func NewTracker(store storage.Store, config Config, logger zerolog.Logger) *Tracker {
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}
	if config.Ticker == nil {
		config.Ticker = clock.RealTicker{Period: time.Second}
	}
	if config.DefaultSettings.Validate() != nil {
		config.DefaultSettings = policy.DefaultSettings()
	}

	logger = logger.With().Str("component", "usage-tracker").Logger()

	return &Tracker{
		store:    store,
		history:  NewHistory(store.History(), logger),
		clock:    config.Clock,
		ticker:   config.Ticker,
		defaults: config.DefaultSettings,
		settings: config.DefaultSettings,
		logger:   logger,
	}
}

// Subscribe registers a listener for all subsequent events.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Load reads settings and history from the store. Corrupt records are
// replaced by defaults or an empty history; the tracker stays usable and
// the returned error wraps storage.ErrCorruptState.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error

	settings, err := t.loadSettings(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrCorruptState) {
			return err
		}
		errs = append(errs, err)
	}
	t.settings = settings

	if err := t.history.Load(ctx, t.clock.Now()); err != nil {
		if !errors.Is(err, storage.ErrCorruptState) {
			return err
		}
		errs = append(errs, err)
	}

	t.logger.Info().
		Float64("daily_limit_hours", t.settings.DailyLimitHours).
		Float64("adult_limit_hours", t.settings.AdultLimitHours).
		Int("break_interval_minutes", t.settings.BreakIntervalMinutes).
		Int("break_duration_minutes", t.settings.BreakDurationMinutes).
		Int("sessions", len(t.history.sessions)).
		Msg("Loaded timer state")

	return errors.Join(errs...)
}

func (t *Tracker) loadSettings(ctx context.Context) (policy.Settings, error) {
	rec, err := t.store.Settings().Get(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return t.defaults, nil
	case errors.Is(err, storage.ErrCorruptState):
		metrics.StorageErrors.WithLabelValues("load_settings").Inc()
		t.logger.Warn().Err(err).Msg("Stored settings are corrupt, using defaults")
		return t.defaults, err
	case err != nil:
		metrics.StorageErrors.WithLabelValues("load_settings").Inc()
		return t.defaults, fmt.Errorf("failed to load settings: %w", err)
	}

	settings := policy.Settings{
		DailyLimitHours:      rec.DailyLimitHours,
		AdultLimitHours:      rec.AdultLimitHours,
		BreakIntervalMinutes: rec.BreakIntervalMinutes,
		BreakDurationMinutes: rec.BreakDurationMinutes,
	}
	if err := settings.Validate(); err != nil {
		return t.defaults, fmt.Errorf("%w: settings: %v", storage.ErrCorruptState, err)
	}
	return settings, nil
}

// Start begins a session of category c.
func (t *Tracker) Start(ctx context.Context, c policy.Category) error {
	t.mu.Lock()
	var out batch
	err := t.startLocked(c, &out)
	t.unlockAndEmit(out)
	return err
}

func (t *Tracker) startLocked(c policy.Category, out *batch) error {
	switch t.phase {
	case PhaseRunning:
		return ErrAlreadyRunning
	case PhaseBreak:
		return ErrOnBreak
	}

	if _, err := policy.ParseCategory(string(c)); err != nil {
		return err
	}

	now := t.clock.Now()
	if policy.Remaining(c, t.settings, t.history.DailyTotals(now), 0) <= 0 {
		return fmt.Errorf("%w for %s", ErrBudgetSpent, c)
	}

	elapsed := policy.DecideStart(c, t.memory, t.settings, now)

	var nextBreak int64
	if c.Breaks() {
		nextBreak = t.settings.BreakIntervalSeconds()
	}

	t.session = SessionTimer{Category: c, Elapsed: elapsed, NextBreakAt: nextBreak}
	t.phase = PhaseRunning
	t.startCadenceLocked(t.onSessionTick)
	metrics.TimerRunning.Set(1)

	t.logger.Info().
		Str("category", string(c)).
		Int64("elapsed_seconds", elapsed).
		Bool("resumed", elapsed > 0).
		Msg("Session started")

	out.add(SessionStarted{Category: c, ElapsedSeconds: elapsed, Resumed: elapsed > 0})
	out.add(t.budgetEventsLocked(now)...)
	return nil
}

// Stop ends the running session, records it and enters a break when the
// session reached the break interval. The timer is idle afterwards even if
// persisting the session fails.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	var out batch
	var err error
	if t.phase != PhaseRunning {
		err = ErrNotRunning
	} else {
		err = t.stopLocked(ctx, stopManual, &out)
	}
	t.unlockAndEmit(out)
	return err
}

func (t *Tracker) stopLocked(ctx context.Context, reason stopReason, out *batch) error {
	s := t.session

	// Halt the cadence before anything else changes.
	t.stopCadenceLocked()
	t.phase = PhaseIdle
	t.session = SessionTimer{}
	metrics.TimerRunning.Set(0)

	now := t.clock.Now()

	var err error
	if s.Elapsed > 0 {
		rec := Session{Timestamp: now, Duration: s.Elapsed, Category: s.Category}
		err = t.history.Record(ctx, rec)
		out.add(SessionCompleted{Session: rec})
	}

	needBreak, mem := policy.DecideStop(s.Category, s.Elapsed, t.settings, now)
	t.memory = mem

	t.logger.Info().
		Str("category", string(s.Category)).
		Int64("elapsed_seconds", s.Elapsed).
		Bool("need_break", needBreak).
		Msg("Session stopped")

	if needBreak && reason == stopManual {
		// The session after the break starts over in the same category.
		t.beginBreakLocked(&SessionTimer{Category: s.Category}, triggerStop, out)
	}

	out.add(t.budgetEventsLocked(now)...)
	return err
}

// CompleteBreak ends the active break early.
func (t *Tracker) CompleteBreak(ctx context.Context) error {
	t.mu.Lock()
	var out batch
	err := t.completeBreakLocked(false, &out)
	t.unlockAndEmit(out)
	return err
}

func (t *Tracker) beginBreakLocked(resume *SessionTimer, trigger string, out *batch) {
	t.brk = &BreakTimer{Duration: t.settings.BreakDurationSeconds(), Resume: resume}
	t.phase = PhaseBreak
	t.startCadenceLocked(t.onBreakTick)
	metrics.BreaksStarted.WithLabelValues(trigger).Inc()

	t.logger.Info().
		Str("trigger", trigger).
		Int64("duration_seconds", t.brk.Duration).
		Msg("Break started")

	out.add(BreakStarted{DurationSeconds: t.brk.Duration, Trigger: trigger})
	out.add(BreakCountdown{RemainingSeconds: t.brk.Remaining()})
}

func (t *Tracker) completeBreakLocked(expired bool, out *batch) error {
	if t.phase != PhaseBreak {
		return ErrNoBreak
	}

	t.stopCadenceLocked()
	b := t.brk
	t.brk = nil
	t.memory = policy.Memory{}

	how := "manual"
	if expired {
		how = "expired"
	}
	metrics.BreaksCompleted.WithLabelValues(how).Inc()

	t.logger.Info().
		Str("how", how).
		Int64("break_seconds", b.Elapsed).
		Str("category", string(b.Resume.Category)).
		Int64("elapsed_seconds", b.Resume.Elapsed).
		Msg("Break completed")

	out.add(BreakCompleted{Expired: expired})

	// The interval restarts from the moment the break was taken.
	s := *b.Resume
	if s.Category.Breaks() {
		s.NextBreakAt = s.Elapsed + t.settings.BreakIntervalSeconds()
	}
	t.session = s
	t.phase = PhaseRunning
	t.startCadenceLocked(t.onSessionTick)
	metrics.TimerRunning.Set(1)

	out.add(SessionStarted{Category: s.Category, ElapsedSeconds: s.Elapsed, Resumed: s.Elapsed > 0})
	out.add(t.budgetEventsLocked(t.clock.Now())...)
	return nil
}

func (t *Tracker) onSessionTick(gen uint64) {
	t.mu.Lock()
	var out batch
	if gen == t.gen && t.phase == PhaseRunning {
		t.tickSessionLocked(&out)
	}
	t.unlockAndEmit(out)
}

func (t *Tracker) tickSessionLocked(out *batch) {
	s := &t.session
	s.Elapsed++

	now := t.clock.Now()
	untilBreak, breaks := s.UntilBreak()

	out.add(Tick{ElapsedSeconds: s.Elapsed, UntilBreakSeconds: untilBreak, BreakEnabled: breaks})
	out.add(t.budgetEventsLocked(now)...)

	// Budget exhaustion wins over a break falling due on the same tick.
	remaining := policy.Remaining(s.Category, t.settings, t.history.DailyTotals(now), s.Elapsed)
	if remaining <= 0 {
		category := s.Category
		if err := t.stopLocked(context.Background(), stopLimit, out); err != nil {
			t.logger.Error().Err(err).Msg("Failed to record session stopped at limit")
		}
		metrics.LimitReached.WithLabelValues(string(category)).Inc()
		t.logger.Warn().Str("category", string(category)).Msg("Daily limit reached")
		out.add(LimitReached{Category: category})
		return
	}
	if policy.Imminent(remaining) {
		out.add(ImminentLimit{Category: s.Category, RemainingSeconds: remaining})
	}

	if !breaks {
		return
	}
	if untilBreak <= 0 {
		t.stopCadenceLocked()
		suspended := *s
		t.session = SessionTimer{}
		metrics.TimerRunning.Set(0)
		out.add(BreakDue{ElapsedSeconds: suspended.Elapsed})
		t.beginBreakLocked(&suspended, triggerInterval, out)
		return
	}
	if untilBreak <= policy.ImminentSeconds {
		out.add(ImminentBreak{SecondsUntilBreak: untilBreak})
	}
}

func (t *Tracker) onBreakTick(gen uint64) {
	t.mu.Lock()
	var out batch
	if gen == t.gen && t.phase == PhaseBreak {
		remaining := t.brk.Tick()
		out.add(BreakCountdown{RemainingSeconds: remaining})
		if remaining <= 0 {
			_ = t.completeBreakLocked(true, &out)
		}
	}
	t.unlockAndEmit(out)
}

// AddManualTime records a manual session of hours and minutes.
func (t *Tracker) AddManualTime(ctx context.Context, hours, minutes int, c policy.Category) (Session, error) {
	total := int64(hours)*3600 + int64(minutes)*60
	if total <= 0 || total > MaxManualSeconds {
		return Session{}, fmt.Errorf("%w: manual entry must be between 1 minute and 10 hours, got %ds", policy.ErrInvalidInput, total)
	}
	if _, err := policy.ParseCategory(string(c)); err != nil {
		return Session{}, err
	}

	t.mu.Lock()
	var out batch
	now := t.clock.Now()
	s := Session{Timestamp: now, Duration: total, Category: c, Manual: true}
	err := t.history.Record(ctx, s)
	out.add(SessionCompleted{Session: s}, HistoryChanged{})
	out.add(t.budgetEventsLocked(now)...)
	t.unlockAndEmit(out)

	return s, err
}

// SaveSettings validates and persists new settings. They apply from the
// next tick; a running session keeps its current break point.
func (t *Tracker) SaveSettings(ctx context.Context, s policy.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	var out batch
	err := t.store.Settings().Put(ctx, storage.SettingsRecord{
		DailyLimitHours:      s.DailyLimitHours,
		AdultLimitHours:      s.AdultLimitHours,
		BreakIntervalMinutes: s.BreakIntervalMinutes,
		BreakDurationMinutes: s.BreakDurationMinutes,
	})
	if err != nil {
		metrics.StorageErrors.WithLabelValues("save_settings").Inc()
		err = fmt.Errorf("failed to save settings: %w", err)
	} else {
		t.settings = s
		t.logger.Info().Interface("settings", s).Msg("Settings saved")
		out.add(SettingsChanged{Settings: s})
		out.add(t.budgetEventsLocked(t.clock.Now())...)
	}
	t.unlockAndEmit(out)
	return err
}

// ClearHistory irreversibly removes every recorded session.
func (t *Tracker) ClearHistory(ctx context.Context) error {
	t.mu.Lock()
	var out batch
	err := t.history.Clear(ctx)
	t.logger.Warn().Msg("History cleared")
	out.add(HistoryChanged{})
	out.add(t.budgetEventsLocked(t.clock.Now())...)
	t.unlockAndEmit(out)
	return err
}

// Rollover prunes expired sessions and republishes budgets. It is called
// when the calendar day changes.
func (t *Tracker) Rollover(ctx context.Context) error {
	t.mu.Lock()
	var out batch
	var err error
	now := t.clock.Now()
	if pruned := t.history.Prune(now); pruned > 0 {
		t.logger.Info().Int("pruned", pruned).Msg("Dropped sessions past retention")
		err = t.history.Persist(ctx)
	}
	out.add(HistoryChanged{})
	out.add(t.budgetEventsLocked(now)...)
	t.unlockAndEmit(out)
	return err
}

// Shutdown halts any cadence and records time that has not been saved
// yet. No break is entered.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	var out batch
	var err error

	switch t.phase {
	case PhaseRunning:
		err = t.stopLocked(ctx, stopShutdown, &out)
	case PhaseBreak:
		t.stopCadenceLocked()
		b := t.brk
		t.brk = nil
		t.phase = PhaseIdle
		if b.Resume.Elapsed > 0 {
			s := Session{Timestamp: t.clock.Now(), Duration: b.Resume.Elapsed, Category: b.Resume.Category}
			err = t.history.Record(ctx, s)
			out.add(SessionCompleted{Session: s})
		}
	}

	t.unlockAndEmit(out)
	return err
}

// Status returns a snapshot of the current state.
func (t *Tracker) Status() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	snap := Snapshot{
		Phase:         t.phase,
		Normal:        t.budgetLocked(policy.BucketNormal, now),
		Adult:         t.budgetLocked(policy.BucketAdult, now),
		Today:         t.history.DailyTotals(now),
		TodaySessions: t.history.Today(now),
		Settings:      t.settings,
	}

	switch t.phase {
	case PhaseRunning:
		snap.Category = t.session.Category
		snap.ElapsedSeconds = t.session.Elapsed
		if until, ok := t.session.UntilBreak(); ok {
			snap.UntilBreakSeconds = &until
		}
	case PhaseBreak:
		snap.BreakRemainingSeconds = t.brk.Remaining()
		snap.Category = t.brk.Resume.Category
		snap.ElapsedSeconds = t.brk.Resume.Elapsed
	}

	return snap
}

// Settings returns the active settings.
func (t *Tracker) Settings() policy.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// Sessions returns every retained session, oldest first.
func (t *Tracker) Sessions() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.Sessions()
}

// DailyTotals returns today's recorded totals, excluding a running session.
func (t *Tracker) DailyTotals() policy.Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.DailyTotals(t.clock.Now())
}

// Days reports per-day totals for up to the last seven days.
func (t *Tracker) Days(n int) []DayReport {
	if n <= 0 || n > 7 {
		n = 7
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.Days(t.clock.Now(), n)
}

func (t *Tracker) startCadenceLocked(fn func(gen uint64)) {
	t.gen++
	gen := t.gen
	t.cadence = t.ticker.Start(func() { fn(gen) })
}

func (t *Tracker) stopCadenceLocked() {
	if t.cadence != nil {
		t.cadence.Stop()
		t.cadence = nil
	}
	t.gen++
}

func (t *Tracker) budgetLocked(b policy.Bucket, now time.Time) Budget {
	c := policy.CategoryNormal
	if b == policy.BucketAdult {
		c = policy.CategoryAdult
	}

	remaining := policy.Remaining(c, t.settings, t.history.DailyTotals(now), t.liveElapsedLocked(b))
	percent := policy.PercentRemaining(c, t.settings, remaining)

	return Budget{
		Bucket:    b,
		Remaining: remaining,
		Limit:     policy.LimitSeconds(b, t.settings),
		Percent:   percent,
		Threshold: policy.Classify(percent),
	}
}

func (t *Tracker) liveElapsedLocked(b policy.Bucket) int64 {
	switch t.phase {
	case PhaseRunning:
		if t.session.Category.Bucket() == b {
			return t.session.Elapsed
		}
	case PhaseBreak:
		if r := t.brk.Resume; r.Category.Bucket() == b {
			return r.Elapsed
		}
	}
	return 0
}

func (t *Tracker) budgetEventsLocked(now time.Time) []Event {
	normal := t.budgetLocked(policy.BucketNormal, now)
	adult := t.budgetLocked(policy.BucketAdult, now)

	metrics.RemainingBudget.WithLabelValues(string(policy.BucketNormal)).Set(float64(normal.Remaining))
	metrics.RemainingBudget.WithLabelValues(string(policy.BucketAdult)).Set(float64(adult.Remaining))

	normalCategory := policy.CategoryNormal
	if t.phase == PhaseRunning && t.session.Category == policy.CategoryMovie {
		normalCategory = policy.CategoryMovie
	}

	return []Event{
		RemainingBudget{Category: normalCategory, Seconds: normal.Remaining, Threshold: normal.Threshold},
		RemainingBudget{Category: policy.CategoryAdult, Seconds: adult.Remaining, Threshold: adult.Threshold},
	}
}

// unlockAndEmit queues events and releases the state lock. The first caller
// to find no dispatch in progress delivers the queue, its own events and any
// queued meanwhile, without holding mu. Other callers return at once and
// their events follow in order.
func (t *Tracker) unlockAndEmit(events batch) {
	t.pending = append(t.pending, events...)
	if t.dispatching {
		t.mu.Unlock()
		return
	}

	t.dispatching = true
	for len(t.pending) > 0 {
		queue := t.pending
		t.pending = nil
		listeners := t.listeners
		t.mu.Unlock()

		for _, e := range queue {
			for _, l := range listeners {
				l.OnEvent(e)
			}
		}

		t.mu.Lock()
	}
	t.dispatching = false
	t.mu.Unlock()
}
