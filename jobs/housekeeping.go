package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/medistock/medistock/internal/jobs"
	"github.com/medistock/medistock/internal/shared"
)

// KeyCleaner removes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges expired idempotency keys.
type IdempotencyCleanupJob struct {
	Keys    KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(keys KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Keys: keys, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	payload := IdempotencyCleanupPayload{Retention: DefaultIdempotencyRetention}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Retention <= 0 {
		payload.Retention = DefaultIdempotencyRetention
	}

	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()

	removed, err := j.Keys.Cleanup(ctx, payload.Retention)
	if err != nil {
		return fmt.Errorf("idempotency cleanup: %w", err)
	}
	loggerOrDefault(j.Logger).Info("idempotency keys purged",
		slog.Int64("removed", removed),
		slog.Duration("retention", payload.Retention),
	)
	return nil
}

// NegativeStockScanJob logs and audits medicines with stock below zero.
type NegativeStockScanJob struct {
	Stocks  StockReader
	Audit   AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNegativeStockScanJob initialises the scan handler.
func NewNegativeStockScanJob(stocks StockReader, audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *NegativeStockScanJob {
	return &NegativeStockScanJob{Stocks: stocks, Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes TaskNegativeStockScan tasks.
func (j *NegativeStockScanJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Stocks == nil {
		return errors.New("negative stock scan: handler not configured")
	}
	tracker := j.Metrics.Track(TaskNegativeStockScan)
	defer func() {
		err = tracker.End(err)
	}()

	found, err := j.Stocks.NegativeStock(ctx)
	if err != nil {
		return fmt.Errorf("negative stock scan: %w", err)
	}
	j.Metrics.SetNegativeStock(len(found))

	logger := loggerOrDefault(j.Logger)
	now := time.Now().UTC()
	for _, n := range found {
		logger.Warn("negative stock detected",
			slog.String("pharmacy_id", n.PharmacyID),
			slog.Int64("medicine_id", n.MedicineID),
			slog.String("medicine", n.Title),
			slog.Int64("stock", n.Stock),
		)
		if j.Audit == nil {
			continue
		}
		if err := j.Audit.Record(ctx, shared.AuditLog{
			PharmacyID: n.PharmacyID,
			Action:     "stock:negative",
			Entity:     "medicine",
			EntityID:   strconv.FormatInt(n.MedicineID, 10),
			Meta:       map[string]any{"stock": n.Stock, "medicine_title": n.Title},
			At:         now,
		}); err != nil {
			return fmt.Errorf("negative stock scan: audit: %w", err)
		}
	}
	logger.Info("negative stock scan completed", slog.Int("medicines", len(found)))
	return nil
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
