package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

const namespace = "pr_spike"

// Metrics holds all Prometheus metrics for the application. All Record
// methods are no-ops on a nil receiver.
type Metrics struct {
	// Scan metrics
	ScansTotal        *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	ScanTickersTotal  *prometheus.CounterVec
	LastScanTimestamp *prometheus.GaugeVec

	// Feed metrics
	FeedItems       *prometheus.GaugeVec
	FeedErrorsTotal *prometheus.CounterVec

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Notification metrics
	NotificationsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryTotal  *prometheus.CounterVec
	DBErrorsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

var scanBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200}

// NewMetrics creates and registers all metrics on reg (the default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "runs_total",
				Help:      "Total number of scan runs by label and outcome",
			},
			[]string{"label", "outcome"},
		),
		ScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "duration_seconds",
				Help:      "Duration of scan runs in seconds",
				Buckets:   scanBuckets,
			},
			[]string{"label"},
		),
		ScanTickersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "tickers_total",
				Help:      "Tickers counted per scan stage (scanned, spikes, filtered, alerts)",
			},
			[]string{"stage"},
		),
		LastScanTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last scan finished",
			},
			[]string{"label"},
		),

		FeedItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "items",
				Help:      "Items returned by the last fetch of each feed",
			},
			[]string{"source"},
		),
		FeedErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "errors_total",
				Help:      "Total number of failed feed fetches",
			},
			[]string{"source"},
		),

		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of external API errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifier",
				Name:      "messages_total",
				Help:      "Total number of notification deliveries by sink and status",
			},
			[]string{"sink", "status"},
		),

		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),

		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}
}

// RecordScan records a finished scan run.
func (m *Metrics) RecordScan(label, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(label, outcome).Inc()
	m.ScanDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.LastScanTimestamp.WithLabelValues(label).SetToCurrentTime()
}

// RecordScanStats adds a scan's counters to the per-stage totals.
func (m *Metrics) RecordScanStats(s model.ScanStats) {
	if m == nil {
		return
	}
	for stage, n := range map[string]int{
		"scanned":         s.Scanned,
		"spikes":          s.Spikes,
		"cap_filtered":    s.CapFiltered,
		"pharma_filtered": s.PharmaFiltered,
		"alerts":          s.Alerts,
		"no_pr":           s.NoPR,
		"fetch_failed":    s.FetchFailed,
	} {
		m.ScanTickersTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// RecordFeedFetch records the outcome of fetching one feed.
func (m *Metrics) RecordFeedFetch(source string, items int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FeedErrorsTotal.WithLabelValues(source).Inc()
	}
	m.FeedItems.WithLabelValues(source).Set(float64(items))
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	if m == nil {
		return
	}
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	if m == nil {
		return
	}
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordExternalAPIDuration records the duration of an external API call
func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordNotification records a delivery attempt to a sink.
func (m *Metrics) RecordNotification(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.NotificationsTotal.WithLabelValues(sink, status).Inc()
}

// RecordDBQuery records a database query and whether it failed.
func (m *Metrics) RecordDBQuery(operation, table string, err error) {
	if m == nil {
		return
	}
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	if err != nil {
		m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// ObserveExternalAPI records request count, duration and error for one call
// started at start.
func (m *Metrics) ObserveExternalAPI(service, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RecordExternalAPIRequest(service, operation)
	m.RecordExternalAPIDuration(service, operation, time.Since(start))
	if err != nil {
		m.RecordExternalAPIError(service, operation, ErrorType(err))
	}
}
