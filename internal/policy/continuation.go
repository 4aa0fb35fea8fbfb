package policy

import "time"

// Memory records the most recent normal session that stopped without
// owing a break. The zero value means nothing is remembered.
type Memory struct {
	LastSessionSeconds int64
	LastStopTime       time.Time
}

// Empty reports whether m carries no resumable session.
func (m Memory) Empty() bool {
	return m.LastSessionSeconds == 0 && m.LastStopTime.IsZero()
}

// DecideStart returns the elapsed seconds a new session should start from.
// A normal session stopped short of the break interval resumes its time
// when restarted before a full break duration has passed.
func DecideStart(c Category, m Memory, s Settings, now time.Time) int64 {
	if !c.Breaks() || m.LastSessionSeconds == 0 {
		return 0
	}

	// An absent stop time never counts as a short pause.
	if m.LastStopTime.IsZero() {
		return 0
	}
	sinceStop := now.Sub(m.LastStopTime)

	if m.LastSessionSeconds < s.BreakIntervalSeconds() &&
		sinceStop < time.Duration(s.BreakDurationSeconds())*time.Second {
		return m.LastSessionSeconds
	}
	return 0
}

// DecideStop reports whether a session of elapsed seconds owes a break and
// returns the memory to keep for the next start.
func DecideStop(c Category, elapsed int64, s Settings, now time.Time) (bool, Memory) {
	needBreak := c.Breaks() && elapsed >= s.BreakIntervalSeconds()
	if c.Breaks() && !needBreak {
		return false, Memory{LastSessionSeconds: elapsed, LastStopTime: now}
	}
	return needBreak, Memory{}
}
