package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionSecondsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatimer_session_seconds_total",
			Help: "Total seconds recorded in history",
		},
		[]string{"category"},
	)

	SessionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatimer_sessions_recorded_total",
			Help: "Sessions appended to history",
		},
		[]string{"category", "source"}, // source: timer or manual
	)

	LimitReached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatimer_limit_reached_total",
			Help: "Sessions force-stopped because the daily budget ran out",
		},
		[]string{"category"},
	)

	// Break metrics
	BreaksStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatimer_breaks_started_total",
			Help: "Breaks entered",
		},
		[]string{"trigger"}, // interval or stop
	)

	BreaksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatimer_breaks_completed_total",
			Help: "Breaks completed",
		},
		[]string{"how"}, // expired or manual
	)

	// Budget gauges
	RemainingBudget = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediatimer_remaining_budget_seconds",
			Help: "Seconds left today per budget bucket",
		},
		[]string{"bucket"},
	)

	TimerRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediatimer_timer_running",
			Help: "1 while a session is running",
		},
	)

	// Storage metrics
	StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatimer_storage_errors_total",
			Help: "Failed reads and writes of persisted state",
		},
		[]string{"operation"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SessionSecondsTotal,
		SessionsRecorded,
		LimitReached,
		BreaksStarted,
		BreaksCompleted,
		RemainingBudget,
		TimerRunning,
		StorageErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
