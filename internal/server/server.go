// Package server provides the worker's ops HTTP server: Prometheus metrics
// and an outbox health summary.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync/internal/server/middleware"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/metrics"
)

// Health is the body of /healthz.
type Health struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
	Failed  int    `json:"failed"`
	Uptime  string `json:"uptime"`
}

// Server serves /metrics and /healthz.
type Server struct {
	outbox    directory.Outbox
	logger    *zerolog.Logger
	http      *http.Server
	startTime time.Time
}

// New creates a server listening on addr.
func New(addr string, outbox directory.Outbox, logger *zerolog.Logger) *Server {
	s := &Server{
		outbox:    outbox,
		logger:    logger,
		startTime: time.Now(),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	)(mux)
}

// handleHealth reports the outbox backlog. Parked tasks make the worker
// degraded but not down, so the status code stays 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pending, err := s.outbox.Tasks(r.Context(), directory.TaskPending)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	failed, err := s.outbox.Tasks(r.Context(), directory.TaskFailed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	health := Health{
		Status:  "ok",
		Pending: len(pending),
		Failed:  len(failed),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	}
	if health.Failed > 0 {
		health.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write health response")
	}
}

// Start listens in the background until ctx is cancelled or Shutdown is
// called. Listen errors are returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.http.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics and health")
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Ops server failed")
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
