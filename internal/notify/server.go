package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/beyondnet/beyond/internal/observability"
)

// Server exposes /healthz, /metrics, and /events for operators, separate
// from the RPC transport that serves the inference traffic itself.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	health     *observability.HealthChecker
	hub        *Hub
	logger     zerolog.Logger
}

// New wires the ops router. health may be nil, in which case /healthz
// reports a bare "ok".
func New(health *observability.HealthChecker, hub *Hub, logger zerolog.Logger) *Server {
	s := &Server{
		health: health,
		hub:    hub,
		logger: logger.With().Str("component", "notify_server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/events", hub.ServeWS)

	s.router = r
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
		return
	}

	result := s.health.Check(r.Context())
	status := http.StatusOK
	if result.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = writeJSON(w, result)
}

// Start listens on addr until the process shuts down.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	s.logger.Info().Str("addr", addr).Msg("starting ops server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
