package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("reports:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("reports:warmup").End(boom), boom)

	body := scrape(t, reg)
	require.Contains(t, body, `tillpoint_jobs_total{job="reports:warmup",status="success"} 1`)
	require.Contains(t, body, `tillpoint_jobs_total{job="reports:warmup",status="failure"} 1`)
	require.Contains(t, body, `tillpoint_jobs_failures_total{job="reports:warmup"} 1`)
	require.Contains(t, body, `tillpoint_job_duration_seconds_count{job="reports:warmup"} 2`)
}

func TestLowStockAndEnqueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetLowStock(4)
	m.Enqueued("inventory:low_stock_scan", nil)
	m.Enqueued("inventory:low_stock_scan", errors.New("redis down"))

	body := scrape(t, reg)
	require.Contains(t, body, "tillpoint_low_stock_products 4")
	require.Contains(t, body, `tillpoint_jobs_enqueued_total{status="error",task="inventory:low_stock_scan"} 1`)
	require.Contains(t, body, `tillpoint_jobs_enqueued_total{status="ok",task="inventory:low_stock_scan"} 1`)

	var nilMetrics *Metrics
	nilMetrics.SetLowStock(1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
