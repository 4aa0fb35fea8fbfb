package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/mediatimer/internal/clock"
	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/goodtune/mediatimer/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_BudgetBoundaryForcesStop(t *testing.T) {
	kv := newMemKV()
	kv.seedHistory(t, sessionAt(testStart.Add(-2*time.Hour), 10799, storage.ContentNormal))
	h := newHarness(t, kv)
	ctx := context.Background()

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(time.Second)

	assert.Equal(t, 1, h.events.count("limit_reached"))
	assert.Equal(t, 0, h.events.count("break_started"))
	assert.Equal(t, PhaseIdle, h.tracker.Status().Phase)
	assert.Equal(t, 0, h.clock.Active())

	sessions := h.tracker.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(1), sessions[1].Duration)
	assert.Equal(t, policy.CategoryNormal, sessions[1].Category)
	assert.False(t, sessions[1].Manual)

	// The session is recorded before the limit is announced.
	var completedAt, limitAt int
	for i, e := range h.events.events {
		switch e.Kind() {
		case "session_completed":
			completedAt = i
		case "limit_reached":
			limitAt = i
		}
	}
	assert.Less(t, completedAt, limitAt)

	err := h.tracker.Start(ctx, policy.CategoryMovie)
	assert.ErrorIs(t, err, ErrBudgetSpent)

	// The adult pool is independent.
	assert.NoError(t, h.tracker.Start(ctx, policy.CategoryAdult))
}

func TestTracker_BreakTiming(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.tracker.Start(context.Background(), policy.CategoryNormal))

	h.clock.Advance(1194 * time.Second)
	assert.Equal(t, 0, h.events.count("imminent_break"))

	h.clock.Advance(5 * time.Second)
	imminent := h.events.all("imminent_break")
	require.Len(t, imminent, 5)
	for i, e := range imminent {
		assert.Equal(t, int64(5-i), e.(ImminentBreak).SecondsUntilBreak)
	}
	assert.Equal(t, 0, h.events.count("break_due"))

	h.clock.Advance(time.Second)
	require.Equal(t, 1, h.events.count("break_due"))
	assert.Equal(t, int64(1200), h.events.all("break_due")[0].(BreakDue).ElapsedSeconds)

	status := h.tracker.Status()
	assert.Equal(t, PhaseBreak, status.Phase)
	assert.Equal(t, int64(1200), status.ElapsedSeconds)
	assert.Equal(t, int64(600), status.BreakRemainingSeconds)

	// The session cadence is gone; only the break counts down now.
	h.clock.Advance(10 * time.Second)
	assert.Equal(t, 1200, h.events.count("tick"))
	assert.Equal(t, 1, h.events.count("break_due"))
	assert.Equal(t, 11, h.events.count("break_countdown"))
	assert.Equal(t, 1, h.clock.Active())

	// Nothing is written to history until the session really ends.
	assert.Empty(t, h.tracker.Sessions())
}

func TestTracker_ContinuationResumesShortPause(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(1199 * time.Second)
	require.NoError(t, h.tracker.Stop(ctx))

	assert.Equal(t, PhaseIdle, h.tracker.Status().Phase)
	assert.Equal(t, 0, h.events.count("break_started"))

	h.clock.Advance(5 * time.Minute)
	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))

	started := h.events.all("session_started")
	require.Len(t, started, 2)
	assert.Equal(t, SessionStarted{Category: policy.CategoryNormal, ElapsedSeconds: 1199, Resumed: true}, started[1])

	// One more second reaches the interval.
	h.clock.Advance(time.Second)
	assert.Equal(t, 1, h.events.count("break_due"))

	require.NoError(t, h.tracker.CompleteBreak(ctx))
	status := h.tracker.Status()
	assert.Equal(t, PhaseRunning, status.Phase)
	assert.Equal(t, int64(1200), status.ElapsedSeconds)
	require.NotNil(t, status.UntilBreakSeconds)
	assert.Equal(t, int64(1200), *status.UntilBreakSeconds)

	h.clock.Advance(10 * time.Second)
	require.NoError(t, h.tracker.Stop(ctx))

	// The resumed session is recorded with its full elapsed time.
	sessions := h.tracker.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(1199), sessions[0].Duration)
	assert.Equal(t, int64(1210), sessions[1].Duration)
	assert.Equal(t, int64(2409), h.tracker.DailyTotals().NormalSeconds)
}

func TestTracker_LongPauseStartsFresh(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(600 * time.Second)
	require.NoError(t, h.tracker.Stop(ctx))

	h.clock.Advance(10 * time.Minute)
	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))

	started := h.events.all("session_started")
	assert.Equal(t, int64(0), started[1].(SessionStarted).ElapsedSeconds)
	assert.False(t, started[1].(SessionStarted).Resumed)
}

func TestTracker_StopPastIntervalOwesBreak(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(700 * time.Second)

	// Shortening the interval does not move the running session's break point.
	require.NoError(t, h.tracker.SaveSettings(ctx, policy.Settings{
		DailyLimitHours: 3, AdultLimitHours: 1, BreakIntervalMinutes: 10, BreakDurationMinutes: 1,
	}))
	h.clock.Advance(5 * time.Second)
	assert.Equal(t, PhaseRunning, h.tracker.Status().Phase)

	require.NoError(t, h.tracker.Stop(ctx))

	started := h.events.all("break_started")
	require.Len(t, started, 1)
	assert.Equal(t, BreakStarted{DurationSeconds: 60, Trigger: "stop"}, started[0])
	assert.Equal(t, PhaseBreak, h.tracker.Status().Phase)

	assert.ErrorIs(t, h.tracker.Start(ctx, policy.CategoryNormal), ErrOnBreak)

	h.clock.Advance(60 * time.Second)
	completed := h.events.all("break_completed")
	require.Len(t, completed, 1)
	assert.Equal(t, BreakCompleted{Expired: true}, completed[0])

	// A fresh session follows in the stopped category on the new interval.
	status := h.tracker.Status()
	assert.Equal(t, PhaseRunning, status.Phase)
	assert.Equal(t, policy.CategoryNormal, status.Category)
	assert.Equal(t, int64(0), status.ElapsedSeconds)
	require.NotNil(t, status.UntilBreakSeconds)
	assert.Equal(t, int64(600), *status.UntilBreakSeconds)
	assert.Equal(t, 1, h.clock.Active())

	started = h.events.all("session_started")
	require.Len(t, started, 2)
	assert.Equal(t, SessionStarted{Category: policy.CategoryNormal}, started[1])
}

func TestTracker_BreakAfterStopStartsOver(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(1200 * time.Second)
	require.Equal(t, 1, h.events.count("break_due"))
	require.NoError(t, h.tracker.CompleteBreak(ctx))

	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.tracker.Stop(ctx))
	require.Equal(t, PhaseBreak, h.tracker.Status().Phase)

	sessions := h.tracker.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(1230), sessions[0].Duration)

	// The break reports the category that owes it.
	status := h.tracker.Status()
	assert.Equal(t, policy.CategoryNormal, status.Category)
	assert.Equal(t, int64(0), status.ElapsedSeconds)

	require.NoError(t, h.tracker.CompleteBreak(ctx))
	status = h.tracker.Status()
	assert.Equal(t, PhaseRunning, status.Phase)
	assert.Equal(t, policy.CategoryNormal, status.Category)
	assert.Equal(t, int64(0), status.ElapsedSeconds)
	require.NotNil(t, status.UntilBreakSeconds)
	assert.Equal(t, int64(1200), *status.UntilBreakSeconds)

	h.clock.Advance(5 * time.Second)
	require.NoError(t, h.tracker.Stop(ctx))
	sessions = h.tracker.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(5), sessions[1].Duration)
	assert.Equal(t, PhaseIdle, h.tracker.Status().Phase)
}

func TestTracker_ResumedSessionRecordsFullElapsed(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(600 * time.Second)
	require.NoError(t, h.tracker.Stop(ctx))

	h.clock.Advance(60 * time.Second)
	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	assert.Equal(t, int64(600), h.tracker.Status().ElapsedSeconds)

	h.clock.Advance(60 * time.Second)
	status := h.tracker.Status()
	assert.Equal(t, int64(660), status.ElapsedSeconds)
	assert.Equal(t, int64(10800-600-660), status.Normal.Remaining)

	require.NoError(t, h.tracker.Stop(ctx))
	sessions := h.tracker.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(600), sessions[0].Duration)
	assert.Equal(t, int64(660), sessions[1].Duration)
	assert.Equal(t, int64(1260), h.tracker.DailyTotals().NormalSeconds)
}

func TestTracker_BreakExpiryResumesSession(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(1200 * time.Second)
	require.Equal(t, PhaseBreak, h.tracker.Status().Phase)

	h.clock.Advance(600 * time.Second)

	completed := h.events.all("break_completed")
	require.Len(t, completed, 1)
	assert.Equal(t, BreakCompleted{Expired: true}, completed[0])

	status := h.tracker.Status()
	assert.Equal(t, PhaseRunning, status.Phase)
	assert.Equal(t, int64(1200), status.ElapsedSeconds)

	h.clock.Advance(time.Second)
	ticks := h.events.all("tick")
	last := ticks[len(ticks)-1].(Tick)
	assert.Equal(t, int64(1201), last.ElapsedSeconds)
	assert.Equal(t, int64(1199), last.UntilBreakSeconds)
}

func TestTracker_LimitBeatsBreakOnSameTick(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tracker.SaveSettings(ctx, policy.Settings{
		DailyLimitHours: 1200.0 / 3600, AdultLimitHours: 1, BreakIntervalMinutes: 20, BreakDurationMinutes: 10,
	}))
	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(1200 * time.Second)

	assert.Equal(t, 1, h.events.count("limit_reached"))
	assert.Equal(t, 0, h.events.count("break_due"))
	assert.Equal(t, 0, h.events.count("break_started"))
	assert.Equal(t, 5, h.events.count("imminent_limit"))
	assert.Equal(t, PhaseIdle, h.tracker.Status().Phase)

	sessions := h.tracker.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(1200), sessions[0].Duration)
}

func TestTracker_MovieNeverBreaks(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.tracker.Start(context.Background(), policy.CategoryMovie))
	h.clock.Advance(1300 * time.Second)

	assert.Equal(t, 0, h.events.count("break_due"))
	assert.Equal(t, 0, h.events.count("imminent_break"))

	status := h.tracker.Status()
	assert.Equal(t, PhaseRunning, status.Phase)
	assert.Nil(t, status.UntilBreakSeconds)
	assert.Equal(t, int64(10800-1300), status.Normal.Remaining)
	assert.Equal(t, int64(3600), status.Adult.Remaining)

	ticks := h.events.all("tick")
	assert.False(t, ticks[0].(Tick).BreakEnabled)
}

type captureTicker struct {
	fns     []func()
	stopped int
}

type stopFunc func()

func (f stopFunc) Stop() { f() }

func (c *captureTicker) Start(fn func()) clock.Stopper {
	c.fns = append(c.fns, fn)
	return stopFunc(func() { c.stopped++ })
}

func TestTracker_LateTickAfterStopIsDropped(t *testing.T) {
	fake := clock.NewFake(testStart)
	ticker := &captureTicker{}
	tr := NewTracker(memStore{kv: newMemKV()}, Config{Clock: fake, Ticker: ticker}, zerolog.Nop())
	require.NoError(t, tr.Load(context.Background()))

	rec := &recorder{}
	tr.Subscribe(rec)

	require.NoError(t, tr.Start(context.Background(), policy.CategoryNormal))
	require.Len(t, ticker.fns, 1)

	ticker.fns[0]()
	ticker.fns[0]()
	require.NoError(t, tr.Stop(context.Background()))
	assert.Equal(t, 1, ticker.stopped)

	// A callback that was already in flight when the cadence stopped.
	ticker.fns[0]()

	assert.Equal(t, 2, rec.count("tick"))
	assert.Equal(t, PhaseIdle, tr.Status().Phase)
	sessions := tr.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(2), sessions[0].Duration)
}

// A listener that blocks until its consumer reads, where the consumer calls
// back into the tracker, mirrors how the terminal UI is wired.
func TestTracker_BlockingListenerCallingBack(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))

	ch := make(chan Event)
	quit := make(chan struct{})
	t.Cleanup(func() { close(quit) })
	h.tracker.Subscribe(ListenerFunc(func(e Event) {
		select {
		case ch <- e:
		case <-quit:
		}
	}))

	stopped := make(chan error, 1)
	completed := make(chan struct{})
	go func() {
		first := true
		for {
			select {
			case e := <-ch:
				if first {
					// Stop lands while the tick's events are still being delivered.
					first = false
					go func() { stopped <- h.tracker.Stop(ctx) }()
					time.Sleep(50 * time.Millisecond)
				}
				h.tracker.Status()
				if e.Kind() == "session_completed" {
					close(completed)
				}
			case <-quit:
				return
			}
		}
	}()

	advanced := make(chan struct{})
	go func() {
		h.clock.Advance(time.Second)
		close(advanced)
	}()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked behind a listener")
	}
	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("session_completed was never delivered")
	}
	select {
	case <-advanced:
	case <-time.After(2 * time.Second):
		t.Fatal("tick delivery never finished")
	}

	assert.Equal(t, PhaseIdle, h.tracker.Status().Phase)
	sessions := h.tracker.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(1), sessions[0].Duration)
}

func TestTracker_EventsKeepCommitOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var kinds []string
	h.tracker.Subscribe(ListenerFunc(func(e Event) {
		kinds = append(kinds, e.Kind())
		if e.Kind() == "tick" && len(kinds) == 1 {
			// Events produced from inside a listener are delivered after the
			// current batch.
			require.NoError(t, h.tracker.Stop(ctx))
		}
	}))

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryMovie))
	kinds = nil
	h.clock.Advance(time.Second)

	require.NotEmpty(t, kinds)
	assert.Equal(t, "tick", kinds[0])
	completedAt := -1
	for i, k := range kinds {
		if k == "session_completed" {
			completedAt = i
		}
	}
	// Tick plus its two budget updates come first.
	assert.Equal(t, 3, completedAt)
	assert.Equal(t, PhaseIdle, h.tracker.Status().Phase)
}

func TestTracker_ManualEntry(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for _, tc := range []struct{ hours, minutes int }{{0, 0}, {11, 0}, {10, 1}, {0, -30}, {-1, 30}} {
		_, err := h.tracker.AddManualTime(ctx, tc.hours, tc.minutes, policy.CategoryNormal)
		assert.ErrorIs(t, err, policy.ErrInvalidInput, "%d:%d", tc.hours, tc.minutes)
	}

	_, err := h.tracker.AddManualTime(ctx, 1, 0, policy.Category("podcast"))
	assert.ErrorIs(t, err, policy.ErrInvalidInput)
	assert.Empty(t, h.tracker.Sessions())

	s, err := h.tracker.AddManualTime(ctx, 1, 30, policy.CategoryAdult)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), s.Duration)
	assert.True(t, s.Manual)
	assert.Equal(t, policy.CategoryAdult, s.Category)

	s, err = h.tracker.AddManualTime(ctx, 10, 0, policy.CategoryNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(MaxManualSeconds), s.Duration)

	// Only the total is bounded; the parts may carry into each other.
	s, err = h.tracker.AddManualTime(ctx, 1, -30, policy.CategoryNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), s.Duration)
	s, err = h.tracker.AddManualTime(ctx, -1, 90, policy.CategoryMovie)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), s.Duration)

	stored := h.kv.history(t)
	require.Len(t, stored, 4)
	assert.True(t, stored[0].IsManual)
	assert.Equal(t, storage.ContentAdult, stored[0].ContentType)
}

func TestTracker_DailyTotalsAndClear(t *testing.T) {
	kv := newMemKV()
	kv.seedHistory(t, sessionAt(testStart.AddDate(0, 0, -1), 900, storage.ContentNormal))
	h := newHarness(t, kv)
	ctx := context.Background()

	assert.Equal(t, policy.Totals{}, h.tracker.DailyTotals())

	_, err := h.tracker.AddManualTime(ctx, 0, 30, policy.CategoryNormal)
	require.NoError(t, err)
	_, err = h.tracker.AddManualTime(ctx, 0, 15, policy.CategoryMovie)
	require.NoError(t, err)
	_, err = h.tracker.AddManualTime(ctx, 0, 5, policy.CategoryAdult)
	require.NoError(t, err)

	first := h.tracker.DailyTotals()
	assert.Equal(t, policy.Totals{NormalSeconds: 2700, AdultSeconds: 300}, first)
	assert.Equal(t, first, h.tracker.DailyTotals())

	days := h.tracker.Days(3)
	require.Len(t, days, 3)
	assert.Equal(t, testStart.Format("2006-01-02"), days[0].Date)
	assert.Equal(t, first, days[0].Totals)
	assert.Equal(t, int64(900), days[1].Totals.NormalSeconds)
	assert.Equal(t, policy.Totals{}, days[2].Totals)

	require.NoError(t, h.tracker.ClearHistory(ctx))
	assert.Equal(t, policy.Totals{}, h.tracker.DailyTotals())
	assert.Empty(t, h.tracker.Sessions())
	assert.Equal(t, policy.Totals{}, h.tracker.Days(2)[1].Totals)

	_, err = h.kv.Get(ctx, storage.KeyHistory)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTracker_LoadPrunesExpiredSessions(t *testing.T) {
	kv := newMemKV()
	kv.seedHistory(t,
		sessionAt(testStart.AddDate(0, 0, -8), 100, storage.ContentNormal),
		sessionAt(testStart.AddDate(0, 0, -6), 200, storage.ContentMovie),
	)
	h := newHarness(t, kv)

	sessions := h.tracker.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(200), sessions[0].Duration)

	stored := kv.history(t)
	require.Len(t, stored, 1)
	assert.Equal(t, storage.ContentMovie, stored[0].ContentType)
}

func TestTracker_LoadCorruptStateFallsBack(t *testing.T) {
	kv := newMemKV()
	kv.data[storage.KeySettings] = []byte(`{"dailyLimitHours":-2}`)
	kv.data[storage.KeyHistory] = []byte(`not json`)

	fake := clock.NewFake(testStart)
	tr := NewTracker(memStore{kv: kv}, Config{Clock: fake, Ticker: fake}, zerolog.Nop())

	err := tr.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrCorruptState)

	assert.Equal(t, policy.DefaultSettings(), tr.Settings())
	assert.Empty(t, tr.Sessions())

	require.NoError(t, tr.Start(context.Background(), policy.CategoryNormal))
	fake.Advance(3 * time.Second)
	require.NoError(t, tr.Stop(context.Background()))

	// The next write replaces the corrupt record.
	assert.Len(t, kv.history(t), 1)
}

func TestTracker_InvalidTransitions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, h.tracker.Stop(ctx), ErrNotRunning)
	assert.ErrorIs(t, h.tracker.CompleteBreak(ctx), ErrNoBreak)
	assert.ErrorIs(t, h.tracker.Start(ctx, policy.Category("cartoons")), policy.ErrInvalidInput)

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryAdult))
	assert.ErrorIs(t, h.tracker.Start(ctx, policy.CategoryNormal), ErrAlreadyRunning)
	assert.ErrorIs(t, h.tracker.CompleteBreak(ctx), ErrNoBreak)
}

func TestTracker_SaveSettings(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	err := h.tracker.SaveSettings(ctx, policy.Settings{DailyLimitHours: 2, AdultLimitHours: 0, BreakIntervalMinutes: 20, BreakDurationMinutes: 10})
	assert.ErrorIs(t, err, policy.ErrInvalidInput)
	assert.Equal(t, policy.DefaultSettings(), h.tracker.Settings())

	want := policy.Settings{DailyLimitHours: 2, AdultLimitHours: 0.5, BreakIntervalMinutes: 30, BreakDurationMinutes: 5}
	require.NoError(t, h.tracker.SaveSettings(ctx, want))
	assert.Equal(t, want, h.tracker.Settings())
	assert.Equal(t, 1, h.events.count("settings_changed"))

	raw, err := h.kv.Get(ctx, storage.KeySettings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dailyLimitHours":2,"adultLimitHours":0.5,"breakIntervalMinutes":30,"breakDurationMinutes":5}`, string(raw))

	// A fresh tracker on the same store picks the saved settings up.
	other := newHarness(t, h.kv)
	assert.Equal(t, want, other.tracker.Settings())
}

func TestTracker_SaveSettingsWriteFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.kv.failPut = errors.New("read-only")

	err := h.tracker.SaveSettings(context.Background(), policy.Settings{DailyLimitHours: 1, AdultLimitHours: 1, BreakIntervalMinutes: 1, BreakDurationMinutes: 1})
	require.Error(t, err)
	assert.Equal(t, policy.DefaultSettings(), h.tracker.Settings())
}

func TestTracker_StopWriteFailureStillIdles(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	diskFull := errors.New("disk full")

	require.NoError(t, h.tracker.Start(ctx, policy.CategoryNormal))
	h.clock.Advance(10 * time.Second)

	h.kv.failPut = diskFull
	err := h.tracker.Stop(ctx)
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, PhaseIdle, h.tracker.Status().Phase)
	assert.Equal(t, 0, h.clock.Active())

	// Kept in memory and written by the next successful persist.
	h.kv.failPut = nil
	_, err = h.tracker.AddManualTime(ctx, 0, 1, policy.CategoryNormal)
	require.NoError(t, err)
	assert.Len(t, h.kv.history(t), 2)
}

func TestTracker_ShutdownRecordsPendingTime(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.tracker.Start(context.Background(), policy.CategoryMovie))
		h.clock.Advance(30 * time.Second)

		require.NoError(t, h.tracker.Shutdown(context.Background()))
		assert.Equal(t, 0, h.clock.Active())
		assert.Equal(t, PhaseIdle, h.tracker.Status().Phase)
		require.Len(t, h.kv.history(t), 1)
		assert.Equal(t, int64(30), h.kv.history(t)[0].Duration)
	})

	t.Run("suspended by break", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.tracker.Start(context.Background(), policy.CategoryNormal))
		h.clock.Advance(1205 * time.Second)
		require.Equal(t, PhaseBreak, h.tracker.Status().Phase)

		require.NoError(t, h.tracker.Shutdown(context.Background()))
		assert.Equal(t, 0, h.clock.Active())
		require.Len(t, h.kv.history(t), 1)
		assert.Equal(t, int64(1200), h.kv.history(t)[0].Duration)
	})

	t.Run("idle", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.tracker.Shutdown(context.Background()))
		_, err := h.kv.Get(context.Background(), storage.KeyHistory)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestTracker_RolloverMovesToNewDay(t *testing.T) {
	kv := newMemKV()
	kv.seedHistory(t, sessionAt(testStart.Add(-time.Hour), 3000, storage.ContentNormal))
	h := newHarness(t, kv)

	assert.Equal(t, int64(3000), h.tracker.DailyTotals().NormalSeconds)

	h.clock.Set(testStart.Add(5 * time.Hour))
	require.NoError(t, h.tracker.Rollover(context.Background()))

	assert.Equal(t, int64(0), h.tracker.DailyTotals().NormalSeconds)
	assert.Equal(t, int64(10800), h.tracker.Status().Normal.Remaining)
	assert.Equal(t, 1, h.events.count("history_changed"))
}
