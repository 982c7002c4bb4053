// Package server exposes the daemon's health, metrics and report endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/recorder"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
)

// ReportSource serves the most recent scan report.
type ReportSource interface {
	LatestReport(ctx context.Context) (*model.ScanReportRecord, error)
}

// Handler serves the HTTP API.
type Handler struct {
	reports  ReportSource
	breakers *resilience.Registry
	logger   zerolog.Logger
}

// NewHandler creates a Handler. breakers may be nil.
func NewHandler(reports ReportSource, breakers *resilience.Registry, logger zerolog.Logger) *Handler {
	return &Handler{reports: reports, breakers: breakers, logger: logger}
}

// NewRouter creates the chi router. gatherer backs /metrics.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(MetricsMiddleware(metrics))

	r.Get("/healthz", h.HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/report/latest", h.HandleLatestReport)
		r.Get("/breakers", h.HandleBreakers)
	})
	return r
}

// responseWriter captures the status code for metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request count and latency per route pattern.
func MetricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapped.statusCode), time.Since(start))
		})
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]string{"status": "ok"})
}

func (h *Handler) HandleLatestReport(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reports.LatestReport(r.Context())
	if errors.Is(err, recorder.ErrNoReport) {
		h.jsonError(w, "no scan has run yet", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("load latest report")
		h.jsonError(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, rec)
}

func (h *Handler) HandleBreakers(w http.ResponseWriter, r *http.Request) {
	statuses := []resilience.Status{}
	if h.breakers != nil {
		statuses = h.breakers.Status()
	}
	h.jsonResponse(w, statuses)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("encode response")
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
