package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Export is the content of a legacy browser export. Either part may be
// absent.
type Export struct {
	Settings *SettingsRecord
	History  []SessionRecord
}

// ParseExport reads a legacy export. Accepted shapes are an object keyed by
// the storage keys, whose values are either JSON or JSON encoded as strings
// the way browser storage holds them, a bare history array, or a bare
// settings object. Every part is validated like a stored record.
func ParseExport(data []byte) (*Export, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty export", ErrCorruptState)
	}

	if data[0] == '[' {
		history, err := DecodeHistory(data)
		if err != nil {
			return nil, err
		}
		return &Export{History: history}, nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, fmt.Errorf("%w: export: %v", ErrCorruptState, err)
	}

	rawSettings, hasSettings := keyed[KeySettings]
	rawHistory, hasHistory := keyed[KeyHistory]
	if !hasSettings && !hasHistory {
		settings, err := DecodeSettings(data)
		if err != nil {
			return nil, err
		}
		return &Export{Settings: settings}, nil
	}

	var out Export
	if hasSettings {
		settings, err := DecodeSettings(unquote(rawSettings))
		if err != nil {
			return nil, err
		}
		out.Settings = settings
	}
	if hasHistory {
		history, err := DecodeHistory(unquote(rawHistory))
		if err != nil {
			return nil, err
		}
		out.History = history
	}
	return &out, nil
}

// unquote returns the JSON held in a string value, or raw unchanged.
func unquote(raw json.RawMessage) []byte {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}
