package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is returned for out-of-range manual entries and malformed settings.
var ErrInvalidInput = errors.New("invalid input")

// Category represents the kind of content being timed
type Category string

const (
	CategoryNormal Category = "normal"
	CategoryAdult  Category = "adult"
	CategoryMovie  Category = "movie"
)

// ParseCategory normalizes s and validates it against the known categories.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryNormal, CategoryAdult, CategoryMovie:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q (must be normal, adult, or movie)", ErrInvalidInput, s)
	}
}

// UnmarshalJSON implements json.Unmarshaler to normalize the category to lowercase.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Bucket returns the budget pool the category draws from. Movie shares
// the normal pool.
func (c Category) Bucket() Bucket {
	if c == CategoryAdult {
		return BucketAdult
	}
	return BucketNormal
}

// Breaks reports whether the category participates in break enforcement.
func (c Category) Breaks() bool {
	return c == CategoryNormal
}

// Bucket is a daily budget pool.
type Bucket string

const (
	BucketNormal Bucket = "normal"
	BucketAdult  Bucket = "adult"
)

// Threshold classifies how much of a budget is left.
type Threshold string

const (
	ThresholdNormal  Threshold = "normal"
	ThresholdWarning Threshold = "warning"
	ThresholdDanger  Threshold = "danger"
)

// Settings is the user-editable timer configuration.
type Settings struct {
	DailyLimitHours      float64 `json:"dailyLimitHours"`
	AdultLimitHours      float64 `json:"adultLimitHours"`
	BreakIntervalMinutes int     `json:"breakIntervalMinutes"`
	BreakDurationMinutes int     `json:"breakDurationMinutes"`
}

const (
	DefaultDailyLimitHours      = 3
	DefaultAdultLimitHours      = 1
	DefaultBreakIntervalMinutes = 20
	DefaultBreakDurationMinutes = 10
)

// DefaultSettings returns the settings used when nothing has been saved.
func DefaultSettings() Settings {
	return Settings{
		DailyLimitHours:      DefaultDailyLimitHours,
		AdultLimitHours:      DefaultAdultLimitHours,
		BreakIntervalMinutes: DefaultBreakIntervalMinutes,
		BreakDurationMinutes: DefaultBreakDurationMinutes,
	}
}

// Validate checks that every field is positive.
func (s Settings) Validate() error {
	if !(s.DailyLimitHours > 0) {
		return fmt.Errorf("%w: daily limit must be positive, got %v", ErrInvalidInput, s.DailyLimitHours)
	}
	if !(s.AdultLimitHours > 0) {
		return fmt.Errorf("%w: adult limit must be positive, got %v", ErrInvalidInput, s.AdultLimitHours)
	}
	if s.BreakIntervalMinutes <= 0 {
		return fmt.Errorf("%w: break interval must be positive, got %d", ErrInvalidInput, s.BreakIntervalMinutes)
	}
	if s.BreakDurationMinutes <= 0 {
		return fmt.Errorf("%w: break duration must be positive, got %d", ErrInvalidInput, s.BreakDurationMinutes)
	}
	return nil
}

// BreakIntervalSeconds is the continuous normal usage allowed before a break.
func (s Settings) BreakIntervalSeconds() int64 {
	return int64(s.BreakIntervalMinutes) * 60
}

// BreakDurationSeconds is the length of a mandatory break.
func (s Settings) BreakDurationSeconds() int64 {
	return int64(s.BreakDurationMinutes) * 60
}
