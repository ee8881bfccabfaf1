// Package health exposes HTTP endpoints for liveness checks and
// Prometheus scraping.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/cqlguard/internal/resilience/breaker"
)

// Pinger probes the cluster, typically through the resilient executor.
type Pinger func(ctx context.Context) error

// States returns the current breaker cells for the detailed report.
type States func() map[string]breaker.Snapshot

// Server provides /health, /health/detailed and /metrics.
type Server struct {
	ping   Pinger
	states States
	server *http.Server
}

// NewServer creates a health server on the given port.
func NewServer(port int, ping Pinger, states States) *Server {
	mux := http.NewServeMux()
	s := &Server{
		ping:   ping,
		states: states,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.ping(r.Context()); err != nil {
		status = "critical"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := map[string]any{}

	if err := s.ping(r.Context()); err != nil {
		report["cluster"] = map[string]string{"status": "critical", "error": err.Error()}
	} else {
		report["cluster"] = map[string]string{"status": "healthy"}
	}

	breakers := map[string]any{}
	for key, snap := range s.states() {
		breakers[key] = map[string]any{
			"state":                snap.State.String(),
			"consecutive_failures": snap.ConsecutiveFailures,
		}
	}
	report["breakers"] = breakers

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
