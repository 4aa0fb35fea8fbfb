package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/goodtune/mediatimer/internal/usage"
	"github.com/rs/zerolog"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps tracker errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, policy.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, usage.ErrAlreadyRunning),
		errors.Is(err, usage.ErrNotRunning),
		errors.Is(err, usage.ErrOnBreak),
		errors.Is(err, usage.ErrNoBreak),
		errors.Is(err, usage.ErrBudgetSpent):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// TimerHandler handles timer API requests.
type TimerHandler struct {
	tracker *usage.Tracker
	logger  zerolog.Logger
}

// NewTimerHandler creates a new timer handler.
func NewTimerHandler(tracker *usage.Tracker, logger zerolog.Logger) *TimerHandler {
	return &TimerHandler{
		tracker: tracker,
		logger:  logger.With().Str("handler", "timer").Logger(),
	}
}

func (h *TimerHandler) fail(w http.ResponseWriter, err error, action string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("Failed to " + action)
		writeError(w, code, "Failed to "+action)
		return
	}
	writeError(w, code, err.Error())
}

// GetStatus returns the current tracker snapshot.
func (h *TimerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Status())
}

// StartSessionRequest is the body of POST /api/session/start.
type StartSessionRequest struct {
	Category policy.Category `json:"category"`
}

// StartSession starts a session.
func (h *TimerHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	if err := h.tracker.Start(r.Context(), req.Category); err != nil {
		h.fail(w, err, "start session")
		return
	}

	writeJSON(w, http.StatusOK, h.tracker.Status())
}

// StopSession stops the running session.
func (h *TimerHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Stop(r.Context()); err != nil {
		h.fail(w, err, "stop session")
		return
	}

	writeJSON(w, http.StatusOK, h.tracker.Status())
}

// CompleteBreak ends the active break early.
func (h *TimerHandler) CompleteBreak(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.CompleteBreak(r.Context()); err != nil {
		h.fail(w, err, "complete break")
		return
	}

	writeJSON(w, http.StatusOK, h.tracker.Status())
}

// GetToday returns today's sessions and totals.
func (h *TimerHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	status := h.tracker.Status()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":     h.tracker.Days(1)[0].Date,
		"sessions": status.TodaySessions,
		"totals":   status.Today,
		"count":    len(status.TodaySessions),
	})
}

// GetDays returns per-day totals for the last n days.
func (h *TimerHandler) GetDays(w http.ResponseWriter, r *http.Request) {
	n := 7
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 7 {
			writeError(w, http.StatusBadRequest, "n must be between 1 and 7")
			return
		}
		n = v
	}

	days := h.tracker.Days(n)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":  days,
		"count": len(days),
	})
}

// ManualEntryRequest is the body of POST /api/history/manual.
type ManualEntryRequest struct {
	Hours    int             `json:"hours"`
	Minutes  int             `json:"minutes"`
	Category policy.Category `json:"category"`
}

// AddManual records a manual session.
func (h *TimerHandler) AddManual(w http.ResponseWriter, r *http.Request) {
	var req ManualEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Category == "" {
		req.Category = policy.CategoryNormal
	}

	session, err := h.tracker.AddManualTime(r.Context(), req.Hours, req.Minutes, req.Category)
	if err != nil {
		h.fail(w, err, "add manual time")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// ClearHistory removes every recorded session.
func (h *TimerHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.ClearHistory(r.Context()); err != nil {
		h.fail(w, err, "clear history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "History cleared",
	})
}

// GetSettings returns the active settings.
func (h *TimerHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Settings())
}

// PutSettings replaces the settings.
func (h *TimerHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var s policy.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := h.tracker.SaveSettings(r.Context(), s); err != nil {
		h.fail(w, err, "save settings")
		return
	}

	writeJSON(w, http.StatusOK, h.tracker.Settings())
}
