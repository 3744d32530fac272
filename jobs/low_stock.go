package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tillpoint/tillpoint/internal/catalog"
	jobmetrics "github.com/tillpoint/tillpoint/internal/jobs"
)

// ProductSource reads stock levels.
type ProductSource interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
	LowStock(ctx context.Context) ([]catalog.Product, error)
}

// LowStockScanJob reports products that need reordering.
type LowStockScanJob struct {
	Products ProductSource
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(products ProductSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Products: products, Logger: logger, Metrics: metrics}
}

// Handle processes low stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Products == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.logger().With(slog.String("trigger", payload.Trigger))

	if len(payload.ProductIDs) > 0 {
		for _, id := range payload.ProductIDs {
			p, err := j.Products.Get(ctx, id)
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if p.IsActive() && p.IsLowStock() {
				logger.Warn("product low on stock", slog.Int64("product_id", p.ID), slog.String("code", p.Code),
					slog.Int64("stock", p.Stock), slog.Int64("min_stock", p.MinStock))
			}
		}
		return nil
	}

	products, err := j.Products.LowStock(ctx)
	if err != nil {
		logger.Error("load low stock products", slog.Any("error", err))
		return err
	}
	j.Metrics.SetLowStock(len(products))
	for _, p := range products {
		logger.Warn("product low on stock", slog.Int64("product_id", p.ID), slog.String("code", p.Code),
			slog.Int64("stock", p.Stock), slog.Int64("min_stock", p.MinStock))
	}
	logger.Info("completed low stock scan", slog.Int("low", len(products)))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}
