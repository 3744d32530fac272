package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan checks products against their reorder threshold.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskReportWarmup precomputes recent daily reports into the cache.
	TaskReportWarmup = "reports:warmup"
)

// LowStockScanPayload limits a scan to the listed products. An empty list
// scans the whole catalog.
type LowStockScanPayload struct {
	ProductIDs []int64 `json:"product_ids,omitempty"`
	Trigger    string  `json:"trigger,omitempty"`
}

// ReportWarmupPayload sets how many days back from today to warm.
type ReportWarmupPayload struct {
	Days int `json:"days,omitempty"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data, asynq.MaxRetry(3)), nil
}

// NewReportWarmupTask constructs an Asynq task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data, asynq.MaxRetry(1)), nil
}
