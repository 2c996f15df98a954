package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/medistock/medistock/internal/invoicing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries settlement follow-ups ahead of housekeeping.
	QueueCritical = "critical"

	// TaskSettlementCompensated reconciles stock after a rolled-back settlement.
	TaskSettlementCompensated = "settlement:compensated"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskNegativeStockScan reports medicines whose stock dropped below zero.
	TaskNegativeStockScan = "stock:negative-scan"
)

// DefaultIdempotencyRetention is how long processed request keys are kept.
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// NewSettlementCompensatedTask wraps a compensation event for the worker.
func NewSettlementCompensatedTask(event invoicing.CompensatedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementCompensated, data, asynq.Queue(QueueCritical), asynq.MaxRetry(10)), nil
}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask builds the periodic cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewNegativeStockScanTask builds the periodic negative stock scan.
func NewNegativeStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskNegativeStockScan, nil)
}
