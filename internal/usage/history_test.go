package usage

import (
	"context"
	"testing"
	"time"

	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/goodtune/mediatimer/internal/storage"
	"github.com/rs/zerolog"
)

func TestHistory_PruneBoundary(t *testing.T) {
	h := NewHistory(storage.NewHistoryStore(newMemKV()), zerolog.Nop())
	h.sessions = []Session{
		{Timestamp: testStart.Add(-RetentionPeriod - time.Second), Duration: 1, Category: policy.CategoryNormal},
		{Timestamp: testStart.Add(-RetentionPeriod), Duration: 2, Category: policy.CategoryNormal},
		{Timestamp: testStart, Duration: 3, Category: policy.CategoryNormal},
	}

	if pruned := h.Prune(testStart); pruned != 1 {
		t.Fatalf("Prune() = %d, want 1", pruned)
	}
	got := h.Sessions()
	if len(got) != 2 || got[0].Duration != 2 {
		t.Errorf("sessions after prune = %+v", got)
	}
	if pruned := h.Prune(testStart); pruned != 0 {
		t.Errorf("second Prune() = %d, want 0", pruned)
	}
}

func TestHistory_LegacyRecordsLoadAsCategories(t *testing.T) {
	kv := newMemKV()
	kv.data[storage.KeyHistory] = []byte(`[
		{"date":"2024-05-01T10:00:00.000Z","duration":60,"isMovie":true},
		{"date":"2024-05-01T11:00:00.000Z","duration":120,"isMovie":false},
		{"date":"2024-05-01T12:00:00.000Z","duration":180,"contentType":"adult","isManual":true}
	]`)

	h := NewHistory(storage.NewHistoryStore(kv), zerolog.Nop())
	if err := h.Load(context.Background(), time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []policy.Category{policy.CategoryMovie, policy.CategoryNormal, policy.CategoryAdult}
	got := h.Sessions()
	if len(got) != len(want) {
		t.Fatalf("loaded %d sessions, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s.Category != want[i] {
			t.Errorf("session %d category = %q, want %q", i, s.Category, want[i])
		}
	}
	if !got[2].Manual {
		t.Error("manual flag lost")
	}
}

func TestHistory_TodayAndDays(t *testing.T) {
	h := NewHistory(storage.NewHistoryStore(newMemKV()), zerolog.Nop())
	ctx := context.Background()

	records := []Session{
		{Timestamp: testStart.AddDate(0, 0, -2), Duration: 100, Category: policy.CategoryAdult},
		{Timestamp: testStart.AddDate(0, 0, -1), Duration: 200, Category: policy.CategoryMovie},
		{Timestamp: testStart.Add(-time.Minute), Duration: 300, Category: policy.CategoryNormal},
	}
	for _, r := range records {
		if err := h.Record(ctx, r); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	today := h.Today(testStart)
	if len(today) != 1 || today[0].Duration != 300 {
		t.Errorf("Today() = %+v", today)
	}

	days := h.Days(testStart, 3)
	want := []policy.Totals{
		{NormalSeconds: 300},
		{NormalSeconds: 200},
		{AdultSeconds: 100},
	}
	for i, d := range days {
		if d.Totals != want[i] {
			t.Errorf("day %d (%s) = %+v, want %+v", i, d.Date, d.Totals, want[i])
		}
	}

	// A new record invalidates cached past days.
	if err := h.Record(ctx, Session{Timestamp: testStart.AddDate(0, 0, -1), Duration: 50, Category: policy.CategoryNormal}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got := h.Days(testStart, 2)[1].Totals.NormalSeconds; got != 250 {
		t.Errorf("yesterday after new record = %d, want 250", got)
	}
}
