package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/catalog"
	jobmetrics "github.com/tillpoint/tillpoint/internal/jobs"
	"github.com/tillpoint/tillpoint/internal/reports"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubProducts struct {
	byID    map[int64]catalog.Product
	low     []catalog.Product
	lowErr  error
	fetched []int64
}

func (s *stubProducts) Get(_ context.Context, id int64) (catalog.Product, error) {
	s.fetched = append(s.fetched, id)
	p, ok := s.byID[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (s *stubProducts) LowStock(context.Context) ([]catalog.Product, error) {
	return s.low, s.lowErr
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, data)
}

func TestLowStockScanFullCatalog(t *testing.T) {
	products := &stubProducts{low: []catalog.Product{
		{ID: 1, Code: "TEA", Stock: 1, MinStock: 5, Status: catalog.StatusActive},
		{ID: 2, Code: "MILK", Stock: 0, MinStock: 2, Status: catalog.StatusActive},
	}}
	job := NewLowStockScanJob(products, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), task(t, TaskLowStockScan, LowStockScanPayload{Trigger: "cron"})))
	assert.Empty(t, products.fetched)
}

func TestLowStockScanTargetedSkipsMissing(t *testing.T) {
	products := &stubProducts{byID: map[int64]catalog.Product{
		1: {ID: 1, Code: "TEA", Stock: 10, MinStock: 5, Status: catalog.StatusActive},
	}}
	job := NewLowStockScanJob(products, quiet, nil)

	err := job.Handle(context.Background(), task(t, TaskLowStockScan, LowStockScanPayload{ProductIDs: []int64{1, 99}}))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 99}, products.fetched)
}

func TestLowStockScanPropagatesErrors(t *testing.T) {
	products := &stubProducts{lowErr: errors.New("db down")}
	job := NewLowStockScanJob(products, quiet, nil)

	err := job.Handle(context.Background(), task(t, TaskLowStockScan, LowStockScanPayload{}))
	require.EqualError(t, err, "db down")
}

func TestLowStockScanBadPayloadSkipsRetry(t *testing.T) {
	job := NewLowStockScanJob(&stubProducts{}, quiet, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubReporter struct {
	dates []string
	err   error
}

func (s *stubReporter) Daily(_ context.Context, date time.Time) (reports.Daily, error) {
	s.dates = append(s.dates, date.Format("2006-01-02"))
	return reports.Daily{Date: date.Format("2006-01-02")}, s.err
}

func TestReportWarmupWalksBackFromToday(t *testing.T) {
	reporter := &stubReporter{}
	job := NewReportWarmupJob(reporter, quiet, nil)
	job.clock = func() time.Time { return time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Handle(context.Background(), task(t, TaskReportWarmup, ReportWarmupPayload{Days: 3})))
	assert.Equal(t, []string{"2025-10-02", "2025-10-01", "2025-09-30"}, reporter.dates)
}

func TestReportWarmupDefaultsToAWeek(t *testing.T) {
	reporter := &stubReporter{}
	job := NewReportWarmupJob(reporter, quiet, nil)

	require.NoError(t, job.Handle(context.Background(), task(t, TaskReportWarmup, ReportWarmupPayload{})))
	assert.Len(t, reporter.dates, 7)
}

func TestReportWarmupStopsOnError(t *testing.T) {
	reporter := &stubReporter{err: errors.New("boom")}
	job := NewReportWarmupJob(reporter, quiet, nil)

	require.Error(t, job.Handle(context.Background(), task(t, TaskReportWarmup, ReportWarmupPayload{Days: 3})))
	assert.Len(t, reporter.dates, 1)
}

func TestTaskConstructors(t *testing.T) {
	scan, err := NewLowStockScanTask(LowStockScanPayload{ProductIDs: []int64{4}})
	require.NoError(t, err)
	assert.Equal(t, TaskLowStockScan, scan.Type())
	assert.JSONEq(t, `{"product_ids":[4]}`, string(scan.Payload()))

	warm, err := NewReportWarmupTask(ReportWarmupPayload{Days: 2})
	require.NoError(t, err)
	assert.Equal(t, TaskReportWarmup, warm.Type())
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, quiet).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
