package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

func TestRecordScan(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordScan("Evening", "completed", 3*time.Second)
	m.RecordScan("Evening", "completed", time.Second)
	m.RecordScan("Morning", "skipped", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("Evening", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("Morning", "skipped")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ScanDuration))
}

func TestRecordScanStats(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordScanStats(model.ScanStats{Scanned: 10, Spikes: 3, Alerts: 1, FetchFailed: 2})
	m.RecordScanStats(model.ScanStats{Scanned: 5})

	assert.Equal(t, 15.0, testutil.ToFloat64(m.ScanTickersTotal.WithLabelValues("scanned")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ScanTickersTotal.WithLabelValues("spikes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanTickersTotal.WithLabelValues("alerts")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScanTickersTotal.WithLabelValues("fetch_failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ScanTickersTotal.WithLabelValues("no_pr")))
}

func TestRecordFeedFetch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordFeedFetch("PR Newswire", 42, nil)
	m.RecordFeedFetch("GlobeNewswire NYSE", 0, errors.New("boom"))

	assert.Equal(t, 42.0, testutil.ToFloat64(m.FeedItems.WithLabelValues("PR Newswire")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedErrorsTotal.WithLabelValues("GlobeNewswire NYSE")))
}

func TestObserveExternalAPI(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveExternalAPI("yahoo", "chart", time.Now(), nil)
	m.ObserveExternalAPI("yahoo", "chart", time.Now(), fmt.Errorf("yahoo: %w", context.DeadlineExceeded))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExternalAPIRequestsTotal.WithLabelValues("yahoo", "chart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalAPIErrorsTotal.WithLabelValues("yahoo", "chart", "timeout")))
}

func TestRecordNotificationAndDB(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordNotification("slack", nil)
	m.RecordNotification("slack", errors.New("x"))
	m.RecordDBQuery("insert", "scan_runs", nil)
	m.RecordDBQuery("insert", "scan_runs", errors.New("locked"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("slack", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("slack", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("insert", "scan_runs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBErrorsTotal.WithLabelValues("insert", "scan_runs")))
}

func TestCircuitBreakerMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetCircuitBreakerState("yahoo", 2)
	m.RecordCircuitBreakerTrip("yahoo")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("yahoo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("yahoo")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordScan("Evening", "completed", time.Second)
		m.RecordScanStats(model.ScanStats{Scanned: 1})
		m.RecordFeedFetch("x", 1, nil)
		m.ObserveExternalAPI("x", "y", time.Now(), errors.New("z"))
		m.RecordNotification("x", nil)
		m.RecordDBQuery("x", "y", nil)
		m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
		m.SetCircuitBreakerState("x", 0)
		m.RecordCircuitBreakerTrip("x")
	})
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("wrap: %w", context.Canceled), "canceled"},
		{errors.New("service yahoo unavailable: circuit breaker open"), "circuit_open"},
		{errors.New("yahoo: status 429"), "http_status"},
		{errors.New("fmp decode: unexpected EOF"), "decode"},
		{errors.New("connection reset"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err))
	}
}
