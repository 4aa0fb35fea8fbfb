package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/mediatimer/internal/usage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
}

// Server is the local HTTP control API.
type Server struct {
	config   Config
	tracker  *usage.Tracker
	server   *http.Server
	router   *mux.Router
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, tracker *usage.Tracker, logger zerolog.Logger) *Server {
	s := &Server{
		config:  cfg,
		tracker: tracker,
		router:  mux.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	h := NewTimerHandler(s.tracker, s.logger)

	// Registered on the root router so a wrong method gets 405, not 404.
	s.router.HandleFunc("/api/status", h.GetStatus).Methods("GET")

	s.router.HandleFunc("/api/session/start", h.StartSession).Methods("POST")
	s.router.HandleFunc("/api/session/stop", h.StopSession).Methods("POST")
	s.router.HandleFunc("/api/break/complete", h.CompleteBreak).Methods("POST")

	s.router.HandleFunc("/api/history", h.GetToday).Methods("GET")
	s.router.HandleFunc("/api/history", h.ClearHistory).Methods("DELETE")
	s.router.HandleFunc("/api/history/days", h.GetDays).Methods("GET")
	s.router.HandleFunc("/api/history/manual", h.AddManual).Methods("POST")

	s.router.HandleFunc("/api/settings", h.GetSettings).Methods("GET")
	s.router.HandleFunc("/api/settings", h.PutSettings).Methods("PUT")
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"phase":  s.tracker.Status().Phase,
	})
}
