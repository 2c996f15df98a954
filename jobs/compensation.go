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

	"github.com/medistock/medistock/internal/invoicing"
	jobmetrics "github.com/medistock/medistock/internal/jobs"
	"github.com/medistock/medistock/internal/shared"
)

// StockReader loads current medicine stock.
type StockReader interface {
	MedicineStocks(ctx context.Context, pharmacyID string, ids []int64) (map[int64]int64, error)
	NegativeStock(ctx context.Context) ([]invoicing.NegativeStock, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CompensationJob records the stock left behind by a rolled-back settlement.
// Saga compensation removes the invoice but keeps any stock deltas that were
// already applied, so the audit entry captures the resulting levels.
type CompensationJob struct {
	Stocks  StockReader
	Audit   AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCompensationJob initialises the compensation handler.
func NewCompensationJob(stocks StockReader, audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *CompensationJob {
	return &CompensationJob{Stocks: stocks, Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes TaskSettlementCompensated tasks.
func (j *CompensationJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Stocks == nil || j.Audit == nil {
		return errors.New("compensation: handler not configured")
	}
	var event invoicing.CompensatedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("compensation: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if event.PharmacyID == "" || len(event.Items) == 0 {
		return fmt.Errorf("compensation: empty event: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskSettlementCompensated)
	defer func() {
		err = tracker.End(err)
	}()

	ids := make([]int64, 0, len(event.Items))
	seen := make(map[int64]struct{}, len(event.Items))
	for _, item := range event.Items {
		if _, ok := seen[item.MedicineID]; ok {
			continue
		}
		seen[item.MedicineID] = struct{}{}
		ids = append(ids, item.MedicineID)
	}
	stocks, err := j.Stocks.MedicineStocks(ctx, event.PharmacyID, ids)
	if err != nil {
		return fmt.Errorf("compensation: load stock: %w", err)
	}

	current := make(map[string]int64, len(stocks))
	for id, stock := range stocks {
		current[strconv.FormatInt(id, 10)] = stock
	}
	meta := map[string]any{
		"kind":           string(event.Kind),
		"applied_deltas": event.Applied,
		"items":          event.Items,
		"current_stock":  current,
	}
	if event.CompensationError != "" {
		meta["compensation_error"] = event.CompensationError
	}
	if err := j.Audit.Record(ctx, shared.AuditLog{
		ActorID:    event.ActorID,
		PharmacyID: event.PharmacyID,
		Action:     "invoice:compensation_reconciled",
		Entity:     "invoice",
		EntityID:   strconv.FormatInt(event.InvoiceID, 10),
		Meta:       meta,
		At:         time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("compensation: audit: %w", err)
	}
	j.Metrics.AddCompensation(string(event.Kind))

	loggerOrDefault(j.Logger).Warn("settlement compensated",
		slog.Int64("invoice_id", event.InvoiceID),
		slog.String("pharmacy_id", event.PharmacyID),
		slog.String("kind", string(event.Kind)),
		slog.Int64("applied", event.Applied),
		slog.Int("medicines", len(stocks)),
	)
	return nil
}
