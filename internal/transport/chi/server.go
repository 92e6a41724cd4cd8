// Package chi serves the operational HTTP surface: liveness, store
// readiness, and Prometheus metrics.
package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/metrics"
	"github.com/kailas-cloud/matchdex/internal/store"
)

// Server exposes the probe endpoints.
type Server struct {
	probe  store.Probe
	logger *zap.Logger
}

// NewServer creates a probe HTTP server over the given store.
func NewServer(probe store.Probe, logger *zap.Logger) *Server {
	return &Server{probe: probe, logger: logger}
}

// Routes registers the probe endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Use(metrics.Middleware())
	r.Get("/health", s.HealthCheck)
	r.Get("/ready", s.ReadyCheck)
	r.Get("/metrics", s.Metrics)
}

// HealthCheck handles GET /health. Liveness only; the process is up.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck handles GET /ready. Anything short of a confirmed-ready store
// is reported unavailable, including an unreachable store.
func (s *Server) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	state := s.probe.Ready(r.Context())

	status := http.StatusOK
	if state != store.Ready {
		status = http.StatusServiceUnavailable
		s.logger.Warn("readiness probe failed", zap.String("store", string(state)))
	}

	writeJSON(w, status, map[string]string{"status": string(state)})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
