package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/recorder"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
)

type fakeReports struct {
	rec *model.ScanReportRecord
	err error
}

func (f fakeReports) LatestReport(context.Context) (*model.ScanReportRecord, error) { return f.rec, f.err }

func newTestRouter(t *testing.T, reports ReportSource, breakers *resilience.Registry) (http.Handler, *observability.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	return NewRouter(NewHandler(reports, breakers, zerolog.Nop()), reg, metrics), metrics
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	h, metrics := newTestRouter(t, fakeReports{}, nil)
	w := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200")))
}

func TestLatestReport(t *testing.T) {
	rec := &model.ScanReportRecord{RunID: "run-1", RunLabel: "Evening", Stats: model.ScanStats{Alerts: 1},
		Alerts: []model.AlertRecord{{Ticker: "ACME", Multiple: 5}}}

	tests := []struct {
		name     string
		reports  fakeReports
		wantCode int
		wantBody string
	}{
		{"found", fakeReports{rec: rec}, http.StatusOK, `"run_id":"run-1"`},
		{"none yet", fakeReports{err: recorder.ErrNoReport}, http.StatusNotFound, "no scan has run yet"},
		{"store error", fakeReports{err: errors.New("disk")}, http.StatusInternalServerError, "failed to load report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, tt.reports, nil)
			w := get(t, h, "/api/report/latest")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestBreakers(t *testing.T) {
	h, _ := newTestRouter(t, fakeReports{}, nil)
	w := get(t, h, "/api/breakers")
	assert.JSONEq(t, `[]`, w.Body.String())

	reg := resilience.NewRegistry(resilience.Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 1}, zerolog.Nop(), nil)
	_, _ = resilience.Do(context.Background(), reg, resilience.BreakerYahoo, func() (int, error) { return 0, errors.New("boom") })
	_, _ = resilience.Do(context.Background(), reg, resilience.BreakerFMP, func() (int, error) { return 1, nil })

	h, _ = newTestRouter(t, fakeReports{}, reg)
	w = get(t, h, "/api/breakers")
	require.Equal(t, http.StatusOK, w.Code)

	var got []resilience.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "fmp", got[0].Name)
	assert.Equal(t, "closed", got[0].State)
	assert.Equal(t, "yahoo", got[1].Name)
	assert.Equal(t, "open", got[1].State)
}

func TestMetricsEndpoint(t *testing.T) {
	h, metrics := newTestRouter(t, fakeReports{}, nil)
	metrics.RecordScan("Evening", "ok", time.Second)

	w := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pr_spike_scan_runs_total{label="Evening",outcome="ok"} 1`)
}
