package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/mediatimer/internal/clock"
	"github.com/goodtune/mediatimer/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 1, 20, 0, 0, 0, time.Local)

type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failPut error
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) history(t *testing.T) []storage.SessionRecord {
	t.Helper()
	data, err := m.Get(context.Background(), storage.KeyHistory)
	require.NoError(t, err)
	recs, err := storage.DecodeHistory(data)
	require.NoError(t, err)
	return recs
}

func (m *memKV) seedHistory(t *testing.T, recs ...storage.SessionRecord) {
	t.Helper()
	data, err := storage.EncodeHistory(recs)
	require.NoError(t, err)
	m.data[storage.KeyHistory] = data
}

type memStore struct {
	kv *memKV
}

func (s memStore) Close() error                    { return nil }
func (s memStore) Settings() storage.SettingsStore { return storage.NewSettingsStore(s.kv) }
func (s memStore) History() storage.HistoryStore   { return storage.NewHistoryStore(s.kv) }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

func (r *recorder) all(kind string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type harness struct {
	tracker *Tracker
	clock   *clock.Fake
	kv      *memKV
	events  *recorder
}

func newHarness(t *testing.T, kv *memKV) *harness {
	t.Helper()
	if kv == nil {
		kv = newMemKV()
	}

	fake := clock.NewFake(testStart)
	tr := NewTracker(memStore{kv: kv}, Config{Clock: fake, Ticker: fake}, zerolog.Nop())
	require.NoError(t, tr.Load(context.Background()))

	rec := &recorder{}
	tr.Subscribe(rec)

	return &harness{tracker: tr, clock: fake, kv: kv, events: rec}
}

func sessionAt(ts time.Time, seconds int64, contentType string) storage.SessionRecord {
	return storage.SessionRecord{Date: storage.Timestamp(ts), Duration: seconds, ContentType: contentType}
}
