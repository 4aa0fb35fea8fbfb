package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goodtune/mediatimer/internal/api"
	"github.com/goodtune/mediatimer/internal/clock"
	"github.com/goodtune/mediatimer/internal/config"
	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/goodtune/mediatimer/internal/storage"
	"github.com/goodtune/mediatimer/internal/usage"
)

// backend is what one-shot commands operate on: the running daemon when
// one answers, otherwise the store directly.
type backend interface {
	Status(ctx context.Context) (usage.Snapshot, error)
	Days(ctx context.Context, n int) ([]usage.DayReport, error)
	AddManual(ctx context.Context, hours, minutes int, c policy.Category) (usage.Session, error)
	ClearHistory(ctx context.Context) error
	Settings(ctx context.Context) (policy.Settings, error)
	SaveSettings(ctx context.Context, s policy.Settings) error
	Where() string
	Close() error
}

var forceLocal bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&forceLocal, "local", false, "Operate on storage directly even if a daemon is running")
}

func connect(ctx context.Context, cfg *config.Config) (backend, error) {
	if !forceLocal {
		r := newRemote(fmt.Sprintf("http://%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort))
		if r.alive(ctx) {
			return r, nil
		}
	}

	tracker, store, err := openTracker(ctx, cfg, clock.RealTicker{Period: time.Second}, quietLogger())
	if err != nil {
		return nil, err
	}
	return &local{tracker: tracker, store: store, path: cfg.Storage.Path}, nil
}

type local struct {
	tracker *usage.Tracker
	store   storage.Store
	path    string
}

func (l *local) Status(ctx context.Context) (usage.Snapshot, error) { return l.tracker.Status(), nil }

func (l *local) Days(ctx context.Context, n int) ([]usage.DayReport, error) {
	return l.tracker.Days(n), nil
}

func (l *local) AddManual(ctx context.Context, hours, minutes int, c policy.Category) (usage.Session, error) {
	return l.tracker.AddManualTime(ctx, hours, minutes, c)
}

func (l *local) ClearHistory(ctx context.Context) error { return l.tracker.ClearHistory(ctx) }

func (l *local) Settings(ctx context.Context) (policy.Settings, error) {
	return l.tracker.Settings(), nil
}

func (l *local) SaveSettings(ctx context.Context, s policy.Settings) error {
	return l.tracker.SaveSettings(ctx, s)
}

func (l *local) Where() string { return "local storage " + l.path }

func (l *local) Close() error { return l.store.Close() }

// remote talks to the daemon's control API.
type remote struct {
	base   string
	client *http.Client
}

func newRemote(base string) *remote {
	return &remote{base: base, client: &http.Client{Timeout: 5 * time.Second}}
}

// apiError is a non-2xx response from the daemon.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

func (r *remote) alive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return r.do(ctx, http.MethodGet, "/health", nil, nil) == nil
}

func (r *remote) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
			e.Message = resp.Status
		}
		return &apiError{Code: resp.StatusCode, Message: e.Message}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *remote) Status(ctx context.Context) (usage.Snapshot, error) {
	var s usage.Snapshot
	err := r.do(ctx, http.MethodGet, "/api/status", nil, &s)
	return s, err
}

func (r *remote) Days(ctx context.Context, n int) ([]usage.DayReport, error) {
	var out struct {
		Days []usage.DayReport `json:"days"`
	}
	err := r.do(ctx, http.MethodGet, fmt.Sprintf("/api/history/days?n=%d", n), nil, &out)
	return out.Days, err
}

func (r *remote) AddManual(ctx context.Context, hours, minutes int, c policy.Category) (usage.Session, error) {
	var s usage.Session
	err := r.do(ctx, http.MethodPost, "/api/history/manual", api.ManualEntryRequest{Hours: hours, Minutes: minutes, Category: c}, &s)
	return s, err
}

func (r *remote) ClearHistory(ctx context.Context) error {
	return r.do(ctx, http.MethodDelete, "/api/history", nil, nil)
}

func (r *remote) Settings(ctx context.Context) (policy.Settings, error) {
	var s policy.Settings
	err := r.do(ctx, http.MethodGet, "/api/settings", nil, &s)
	return s, err
}

func (r *remote) SaveSettings(ctx context.Context, s policy.Settings) error {
	return r.do(ctx, http.MethodPut, "/api/settings", s, nil)
}

func (r *remote) Where() string { return "daemon at " + r.base }

func (r *remote) Close() error { return nil }
