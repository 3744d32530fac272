package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tillpoint/tillpoint/internal/jobs"
	"github.com/tillpoint/tillpoint/internal/reports"
)

// DailyReporter loads a daily report, populating its cache.
type DailyReporter interface {
	Daily(ctx context.Context, date time.Time) (reports.Daily, error)
}

// ReportWarmupJob pre-populates report caches for recent days.
type ReportWarmupJob struct {
	Reports DailyReporter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(reporter DailyReporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{Reports: reporter, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = 7
	}
	tracker := j.Metrics.Track(TaskReportWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.clock()
	for i := range payload.Days {
		dayCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Reports.Daily(dayCtx, now.AddDate(0, 0, -i))
		cancel()
		if err != nil {
			j.logger().Error("warm daily report", slog.Int("days_back", i), slog.Any("error", err))
			return err
		}
	}
	j.logger().Info("completed report warmup", slog.Int("days", payload.Days), slog.Duration("duration", time.Since(now)))
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}
