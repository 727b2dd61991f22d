package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes liveness and metrics endpoints for the listener. The
// watchdog polls /health and restarts the service when activity goes stale.
type Server struct {
	logger       *slog.Logger
	lastActivity func() int64
	started      time.Time
	httpServer   *http.Server
}

// healthResponse is the /health body.
type healthResponse struct {
	Status           string `json:"status"`
	LastActivityUnix int64  `json:"last_activity_unix"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

// NewServer creates the health/metrics server. lastActivity reports the unix
// time of the listener's most recent poll iteration.
func NewServer(addr string, lastActivity func() int64, logger *slog.Logger) *Server {
	s := &Server{
		logger:       logger,
		lastActivity: lastActivity,
		started:      time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening. It blocks until the server is shut down or an
// error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting health server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           "ok",
		LastActivityUnix: s.lastActivity(),
		UptimeSeconds:    int64(time.Since(s.started).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}
