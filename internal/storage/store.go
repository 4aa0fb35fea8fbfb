package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record is missing from storage.
	ErrNotFound = errors.New("storage: record not found")

	// ErrCorruptState is returned when a stored record fails to parse or
	// violates its schema. Callers recover by falling back to defaults.
	ErrCorruptState = errors.New("storage: corrupt persisted state")
)

// Record keys. The names match the keys used by the browser edition so an
// exported profile can be imported unchanged.
const (
	KeySettings = "mediaTimerSettings"
	KeyHistory  = "mediaTimerHistory"
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	Settings() SettingsStore
	History() HistoryStore
}

// SettingsStore persists the settings record.
type SettingsStore interface {
	Get(ctx context.Context) (*SettingsRecord, error)
	Put(ctx context.Context, settings SettingsRecord) error
}

// HistoryStore persists the history record as a whole array.
type HistoryStore interface {
	Get(ctx context.Context) ([]SessionRecord, error)
	Put(ctx context.Context, sessions []SessionRecord) error
	Delete(ctx context.Context) error
}

// KV is the raw byte surface a backend provides. Get returns ErrNotFound
// for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// NewSettingsStore layers the settings codec over a backend.
func NewSettingsStore(kv KV) SettingsStore {
	return &settingsStore{kv: kv}
}

// NewHistoryStore layers the history codec over a backend.
func NewHistoryStore(kv KV) HistoryStore {
	return &historyStore{kv: kv}
}

type settingsStore struct {
	kv KV
}

func (s *settingsStore) Get(ctx context.Context) (*SettingsRecord, error) {
	data, err := s.kv.Get(ctx, KeySettings)
	if err != nil {
		return nil, err
	}
	return DecodeSettings(data)
}

func (s *settingsStore) Put(ctx context.Context, settings SettingsRecord) error {
	data, err := EncodeSettings(settings)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, KeySettings, data)
}

type historyStore struct {
	kv KV
}

func (h *historyStore) Get(ctx context.Context) ([]SessionRecord, error) {
	data, err := h.kv.Get(ctx, KeyHistory)
	if err != nil {
		return nil, err
	}
	return DecodeHistory(data)
}

func (h *historyStore) Put(ctx context.Context, sessions []SessionRecord) error {
	data, err := EncodeHistory(sessions)
	if err != nil {
		return err
	}
	return h.kv.Put(ctx, KeyHistory, data)
}

func (h *historyStore) Delete(ctx context.Context) error {
	return h.kv.Delete(ctx, KeyHistory)
}
