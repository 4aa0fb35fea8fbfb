package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/mediatimer/internal/config"
	"github.com/goodtune/mediatimer/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays zero
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		KeyPrefix:    "test",
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestHistoryStore_PutGet(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	recs := []storage.SessionRecord{
		{Date: storage.Timestamp(ts), Duration: 600, ContentType: storage.ContentMovie},
	}
	if err := store.History().Put(ctx, recs); err != nil {
		t.Fatalf("Failed to put history: %v", err)
	}

	raw, err := mr.Get("test:" + storage.KeyHistory)
	if err != nil {
		t.Fatalf("Key not written: %v", err)
	}
	if raw != `[{"date":"2024-01-15T10:30:00.000Z","duration":600,"contentType":"movie"}]` {
		t.Errorf("Unexpected stored value: %s", raw)
	}

	got, err := store.History().Get(ctx)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(got) != 1 || got[0].Duration != 600 {
		t.Errorf("Unexpected history: %+v", got)
	}
}

func TestHistoryStore_LegacyRecord(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	if err := mr.Set("test:"+storage.KeyHistory, `[{"date":"2024-01-15T10:30:00.000Z","duration":60,"isMovie":true}]`); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	got, err := store.History().Get(context.Background())
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if got[0].ContentType != storage.ContentMovie {
		t.Errorf("Expected legacy isMovie to map to movie, got %q", got[0].ContentType)
	}
}

func TestSettingsStore_Missing(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	if _, err := store.Settings().Get(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHistoryStore_Delete(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.History().Put(ctx, nil); err != nil {
		t.Fatalf("Failed to put history: %v", err)
	}
	if !mr.Exists("test:" + storage.KeyHistory) {
		t.Fatal("Expected history key to exist")
	}

	if err := store.History().Delete(ctx); err != nil {
		t.Fatalf("Failed to delete history: %v", err)
	}
	if mr.Exists("test:" + storage.KeyHistory) {
		t.Error("Expected history key to be removed")
	}
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(config.RedisConfig{
		Host:         addr,
		DialTimeout:  "100ms",
		ReadTimeout:  "100ms",
		WriteTimeout: "100ms",
	})
	if err == nil {
		t.Fatal("Expected connection error")
	}
}
