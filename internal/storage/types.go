package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Content types as written to the history record.
const (
	ContentNormal = "normal"
	ContentAdult  = "adult"
	ContentMovie  = "movie"
)

// isoLayout matches the millisecond ISO-8601 form produced by browsers.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// SettingsRecord is the persisted settings object.
type SettingsRecord struct {
	DailyLimitHours      float64 `json:"dailyLimitHours"`
	AdultLimitHours      float64 `json:"adultLimitHours"`
	BreakIntervalMinutes int     `json:"breakIntervalMinutes"`
	BreakDurationMinutes int     `json:"breakDurationMinutes"`
}

// SessionRecord is one entry of the persisted history array.
type SessionRecord struct {
	Date        Timestamp `json:"date"`
	Duration    int64     `json:"duration"`
	ContentType string    `json:"contentType,omitempty"`
	IsMovie     *bool     `json:"isMovie,omitempty"` // legacy, read only
	IsManual    bool      `json:"isManual,omitempty"`
}

// Normalize maps the legacy isMovie flag onto ContentType and drops it.
func (r *SessionRecord) Normalize() {
	if r.ContentType == "" {
		if r.IsMovie != nil && *r.IsMovie {
			r.ContentType = ContentMovie
		} else {
			r.ContentType = ContentNormal
		}
	}
	r.IsMovie = nil
}

// Timestamp is a time.Time that serializes as a UTC ISO-8601 string with
// millisecond precision.
type Timestamp time.Time

// Time returns the underlying time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(isoLayout))
}

// UnmarshalJSON implements json.Unmarshaler. Any RFC 3339 form is accepted.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*t = Timestamp(parsed)
	return nil
}
