package policy

import "math"

// Threshold boundaries, as a percentage of the bucket's daily limit.
const (
	DangerPercent  = 10.0
	WarningPercent = 25.0

	// ImminentSeconds is the window in which a running session is warned
	// about an approaching limit or break.
	ImminentSeconds = 5
)

// Totals holds today's recorded seconds per bucket.
type Totals struct {
	NormalSeconds int64 `json:"normalSeconds"`
	AdultSeconds  int64 `json:"adultSeconds"`
}

// Add returns t with seconds added to the bucket used by c.
func (t Totals) Add(c Category, seconds int64) Totals {
	if c.Bucket() == BucketAdult {
		t.AdultSeconds += seconds
	} else {
		t.NormalSeconds += seconds
	}
	return t
}

// Seconds returns the recorded total for bucket b.
func (t Totals) Seconds(b Bucket) int64 {
	if b == BucketAdult {
		return t.AdultSeconds
	}
	return t.NormalSeconds
}

// LimitSeconds returns the daily allowance for bucket b, rounded to the
// nearest second.
func LimitSeconds(b Bucket, s Settings) int64 {
	hours := s.DailyLimitHours
	if b == BucketAdult {
		hours = s.AdultLimitHours
	}
	return int64(math.Round(hours * 3600))
}

// Remaining returns the seconds left today for category c, counting
// liveElapsed seconds of a session that has not been recorded yet.
func Remaining(c Category, s Settings, totals Totals, liveElapsed int64) int64 {
	b := c.Bucket()
	remaining := LimitSeconds(b, s) - totals.Seconds(b) - liveElapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PercentRemaining expresses remaining as a share of the bucket's limit.
func PercentRemaining(c Category, s Settings, remaining int64) float64 {
	limit := LimitSeconds(c.Bucket(), s)
	if limit <= 0 {
		return 0
	}
	return float64(remaining) / float64(limit) * 100
}

// Classify maps a remaining percentage onto a threshold level.
func Classify(percent float64) Threshold {
	switch {
	case percent <= DangerPercent:
		return ThresholdDanger
	case percent <= WarningPercent:
		return ThresholdWarning
	default:
		return ThresholdNormal
	}
}

// Imminent reports whether remaining lies in (0, ImminentSeconds].
func Imminent(remaining int64) bool {
	return remaining > 0 && remaining <= ImminentSeconds
}
