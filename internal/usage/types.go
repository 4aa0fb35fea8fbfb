package usage

import (
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/mediatimer/internal/policy"
)

var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("no session running")
	ErrOnBreak        = errors.New("break in progress")
	ErrNoBreak        = errors.New("no break in progress")
	ErrBudgetSpent    = errors.New("daily budget already spent")
)

const (
	// RetentionPeriod is how long sessions are kept in history.
	RetentionPeriod = 7 * 24 * time.Hour

	// MaxManualSeconds caps a single manual entry at ten hours.
	MaxManualSeconds = 10 * 3600
)

// Session represents a completed, recorded usage session
type Session struct {
	Timestamp time.Time       `json:"timestamp"`
	Duration  int64           `json:"durationSeconds"`
	Category  policy.Category `json:"category"`
	Manual    bool            `json:"manual,omitempty"`
}

// Phase is the top-level timer state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseBreak
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseBreak:
		return "break"
	default:
		return "idle"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = PhaseIdle
	case "running":
		*p = PhaseRunning
	case "break":
		*p = PhaseBreak
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// SessionTimer holds the counters of the running session. Elapsed counts
// toward the break interval and is recorded in full when the session stops,
// including time resumed from a short pause.
type SessionTimer struct {
	Category    policy.Category
	Elapsed     int64
	NextBreakAt int64 // 0 disables breaks
}

// UntilBreak returns the seconds left before a break is due. ok is false
// when breaks are disabled for this session.
func (s SessionTimer) UntilBreak() (seconds int64, ok bool) {
	if s.NextBreakAt <= 0 || !s.Category.Breaks() {
		return 0, false
	}
	return s.NextBreakAt - s.Elapsed, true
}

// BreakTimer counts a mandatory break down.
type BreakTimer struct {
	Elapsed  int64
	Duration int64

	// Resume is the session that runs once the break completes: the one
	// suspended at the break interval, or a fresh one after a manual stop.
	Resume *SessionTimer
}

// Tick advances the break by one second and returns the seconds left.
func (b *BreakTimer) Tick() int64 {
	b.Elapsed++
	return b.Remaining()
}

// Remaining returns the seconds left in the break, never negative.
func (b BreakTimer) Remaining() int64 {
	if r := b.Duration - b.Elapsed; r > 0 {
		return r
	}
	return 0
}

// Budget is the remaining allowance of one bucket.
type Budget struct {
	Bucket    policy.Bucket    `json:"bucket"`
	Remaining int64            `json:"remainingSeconds"`
	Limit     int64            `json:"limitSeconds"`
	Percent   float64          `json:"percentRemaining"`
	Threshold policy.Threshold `json:"threshold"`
}

// Snapshot is a read-only projection of the tracker state.
type Snapshot struct {
	Phase                 Phase           `json:"phase"`
	Category              policy.Category `json:"category,omitempty"`
	ElapsedSeconds        int64           `json:"elapsedSeconds"`
	UntilBreakSeconds     *int64          `json:"untilBreakSeconds,omitempty"`
	BreakRemainingSeconds int64           `json:"breakRemainingSeconds,omitempty"`
	Normal                Budget          `json:"normal"`
	Adult                 Budget          `json:"adult"`
	Today                 policy.Totals   `json:"today"`
	TodaySessions         []Session       `json:"todaySessions"`
	Settings              policy.Settings `json:"settings"`
}

// DayReport is the per-bucket total of one calendar day.
type DayReport struct {
	Date   string        `json:"date"`
	Totals policy.Totals `json:"totals"`
}
