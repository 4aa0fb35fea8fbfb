package usage

import "github.com/goodtune/mediatimer/internal/policy"

// Event is a notification fired after a state change. Renderers consume the
// projections; alerting consumes ImminentBreak, ImminentLimit, LimitReached
// and BreakDue.
type Event interface {
	Kind() string
}

// Listener receives events in the order they were produced. Listeners run
// on the goroutine that triggered the change and must not call mutating
// Tracker methods synchronously.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Tick fires once per second while a session runs.
type Tick struct {
	ElapsedSeconds    int64
	UntilBreakSeconds int64
	BreakEnabled      bool
}

// RemainingBudget carries one bucket's live remaining allowance.
type RemainingBudget struct {
	Category  policy.Category
	Seconds   int64
	Threshold policy.Threshold
}

// BreakCountdown fires once per second during a break.
type BreakCountdown struct {
	RemainingSeconds int64
}

type SessionStarted struct {
	Category       policy.Category
	ElapsedSeconds int64
	Resumed        bool
}

type SessionCompleted struct {
	Session Session
}

// ImminentBreak is level-triggered: it repeats every tick while the break
// is at most five seconds away.
type ImminentBreak struct {
	SecondsUntilBreak int64
}

// ImminentLimit is level-triggered like ImminentBreak.
type ImminentLimit struct {
	Category         policy.Category
	RemainingSeconds int64
}

type LimitReached struct {
	Category policy.Category
}

type BreakDue struct {
	ElapsedSeconds int64
}

type BreakStarted struct {
	DurationSeconds int64
	Trigger         string // interval or stop
}

// BreakCompleted is followed by SessionStarted for the resumed session.
type BreakCompleted struct {
	Expired bool
}

type SettingsChanged struct {
	Settings policy.Settings
}

type HistoryChanged struct{}

func (Tick) Kind() string             { return "tick" }
func (RemainingBudget) Kind() string  { return "remaining_budget" }
func (BreakCountdown) Kind() string   { return "break_countdown" }
func (SessionStarted) Kind() string   { return "session_started" }
func (SessionCompleted) Kind() string { return "session_completed" }
func (ImminentBreak) Kind() string    { return "imminent_break" }
func (ImminentLimit) Kind() string    { return "imminent_limit" }
func (LimitReached) Kind() string     { return "limit_reached" }
func (BreakDue) Kind() string         { return "break_due" }
func (BreakStarted) Kind() string     { return "break_started" }
func (BreakCompleted) Kind() string   { return "break_completed" }
func (SettingsChanged) Kind() string  { return "settings_changed" }
func (HistoryChanged) Kind() string   { return "history_changed" }

// batch collects events while the tracker lock is held.
type batch []Event

func (b *batch) add(events ...Event) {
	*b = append(*b, events...)
}
