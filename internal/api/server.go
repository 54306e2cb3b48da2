// Package api provides the batfi HTTP server: the latest snapshot, stored
// history, sensor catalog, health, a websocket live feed and Prometheus.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/health"
)

// defaultHistoryLimit caps /api/battery/history when no limit is given.
const defaultHistoryLimit = 100

// Source provides the live state published by the poll loop.
type Source interface {
	Latest() (*domain.BatteryInfo, bool)
	Sensors() domain.SensorReport
	BatteryName() string
}

// History reads stored snapshots.
type History interface {
	RecentSnapshots(battery string, limit int) ([]domain.BatteryInfo, error)
}

// HealthReporter exposes health check results.
type HealthReporter interface {
	Statuses() []health.Status
	IsHealthy() bool
}

// Server is the batfi HTTP API server.
type Server struct {
	source         Source
	version        string
	history        History
	health         HealthReporter
	hub            *Hub
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(source Source, version string) *Server {
	return &Server{source: source, version: version, hub: NewHub()}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHistory enables /api/battery/history.
func (s *Server) SetHistory(h History) { s.history = h }

// SetHealth sets the checker reported by /health.
func (s *Server) SetHealth(h HealthReporter) { s.health = h }

// Hub returns the live stream hub (for broadcasting snapshots).
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})

	r.Route("/api", func(r chi.Router) {
		// The stream is long-lived, so only the plain routes get a timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/battery", s.handleBattery)
			r.Get("/battery/history", s.handleHistory)
			r.Get("/sensors", s.handleSensors)
		})
		r.Get("/battery/stream", s.handleStream)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	info, ok := s.source.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, domain.ErrNoSnapshot.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, domain.ErrStoreDisabled.Error())
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	snaps, err := s.history.RecentSnapshots(s.source.BatteryName(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []domain.BatteryInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"battery":   s.source.BatteryName(),
		"snapshots": snaps,
	})
}

// handleStream sends the latest snapshot first, then one per poll.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var initial []byte
	if info, ok := s.source.Latest(); ok {
		initial, _ = json.Marshal(info)
	}
	s.hub.serve(w, r, initial)
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Sensors())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status >= 500:
		return "internal"
	default:
		return "invalid_request"
	}
}

// corsMiddleware adds CORS headers for local dashboards.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsClosed reports whether err comes from a server shut down on purpose.
func IsClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
