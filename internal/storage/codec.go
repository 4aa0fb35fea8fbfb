package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const settingsSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["dailyLimitHours", "adultLimitHours", "breakIntervalMinutes", "breakDurationMinutes"],
  "properties": {
    "dailyLimitHours":      {"type": "number",  "exclusiveMinimum": 0},
    "adultLimitHours":      {"type": "number",  "exclusiveMinimum": 0},
    "breakIntervalMinutes": {"type": "integer", "exclusiveMinimum": 0},
    "breakDurationMinutes": {"type": "integer", "exclusiveMinimum": 0}
  }
}`

const historySchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["date", "duration"],
    "properties": {
      "date":        {"type": "string", "format": "date-time"},
      "duration":    {"type": "integer", "minimum": 0},
      "contentType": {"type": "string", "enum": ["normal", "adult", "movie"]},
      "isMovie":     {"type": "boolean"},
      "isManual":    {"type": "boolean"}
    }
  }
}`

var (
	settingsSchema = mustSchema(settingsSchemaJSON)
	historySchema  = mustSchema(historySchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("storage: invalid schema: %v", err))
	}
	return schema
}

func validate(schema *gojsonschema.Schema, what string, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// Not parseable as JSON at all.
		return fmt.Errorf("%w: %s: %v", ErrCorruptState, what, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrCorruptState, what, strings.Join(msgs, "; "))
	}
	return nil
}

// The schema accepts integral numbers written with a fraction, such as
// 20.0, so whole-number fields are read as float64 and converted afterwards.
type settingsWire struct {
	DailyLimitHours      float64 `json:"dailyLimitHours"`
	AdultLimitHours      float64 `json:"adultLimitHours"`
	BreakIntervalMinutes float64 `json:"breakIntervalMinutes"`
	BreakDurationMinutes float64 `json:"breakDurationMinutes"`
}

type sessionWire struct {
	Date        Timestamp `json:"date"`
	Duration    float64   `json:"duration"`
	ContentType string    `json:"contentType"`
	IsMovie     *bool     `json:"isMovie"`
	IsManual    bool      `json:"isManual"`
}

// DecodeSettings validates and parses a settings record.
func DecodeSettings(data []byte) (*SettingsRecord, error) {
	if err := validate(settingsSchema, "settings", data); err != nil {
		return nil, err
	}

	var w settingsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: settings: %v", ErrCorruptState, err)
	}
	return &SettingsRecord{
		DailyLimitHours:      w.DailyLimitHours,
		AdultLimitHours:      w.AdultLimitHours,
		BreakIntervalMinutes: int(w.BreakIntervalMinutes),
		BreakDurationMinutes: int(w.BreakDurationMinutes),
	}, nil
}

// EncodeSettings serializes a settings record.
func EncodeSettings(rec SettingsRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

// DecodeHistory validates and parses a history record. Legacy entries are
// normalized on the way in.
func DecodeHistory(data []byte) ([]SessionRecord, error) {
	if err := validate(historySchema, "history", data); err != nil {
		return nil, err
	}

	var wire []sessionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: history: %v", ErrCorruptState, err)
	}

	recs := make([]SessionRecord, len(wire))
	for i, w := range wire {
		recs[i] = SessionRecord{
			Date:        w.Date,
			Duration:    int64(w.Duration),
			ContentType: w.ContentType,
			IsMovie:     w.IsMovie,
			IsManual:    w.IsManual,
		}
		recs[i].Normalize()
	}
	return recs, nil
}

// EncodeHistory serializes a history record, always in normalized form.
func EncodeHistory(recs []SessionRecord) ([]byte, error) {
	out := make([]SessionRecord, len(recs))
	for i, r := range recs {
		r.Normalize()
		out[i] = r
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return data, nil
}
