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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medistock/medistock/internal/invoicing"
	jobmetrics "github.com/medistock/medistock/internal/jobs"
	"github.com/medistock/medistock/internal/shared"
)

type stubStocks struct {
	stocks    map[int64]int64
	negatives []invoicing.NegativeStock
	askedIDs  []int64
	err       error
}

func (s *stubStocks) MedicineStocks(ctx context.Context, pharmacyID string, ids []int64) (map[int64]int64, error) {
	s.askedIDs = ids
	return s.stocks, s.err
}

func (s *stubStocks) NegativeStock(ctx context.Context) ([]invoicing.NegativeStock, error) {
	return s.negatives, s.err
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type stubCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (c *stubCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.olderThan = olderThan
	return c.removed, nil
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (e *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "1", Type: task.Type()}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func compensatedEvent() invoicing.CompensatedEvent {
	return invoicing.CompensatedEvent{
		InvoiceID:  42,
		Kind:       invoicing.KindSale,
		PharmacyID: "ph-a",
		ActorID:    7,
		Items: []invoicing.LineItem{
			{MedicineID: 1, Title: "Napa", Quantity: 2, UnitPrice: price("1.50")},
			{MedicineID: 9, Title: "Ghost", Quantity: 1, UnitPrice: price("3")},
			{MedicineID: 1, Title: "Napa", Quantity: 1, UnitPrice: price("1.50")},
		},
		Applied:    2,
		OccurredAt: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublisherEnqueuesCompensationTask(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	client := NewClientWith(enqueuer)

	var notifier invoicing.CompensationNotifier = client
	require.NoError(t, notifier.NotifyCompensated(context.Background(), compensatedEvent()))

	require.Len(t, enqueuer.tasks, 1)
	assert.Equal(t, TaskSettlementCompensated, enqueuer.tasks[0].Type())
	var decoded invoicing.CompensatedEvent
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &decoded))
	assert.Equal(t, int64(42), decoded.InvoiceID)
	assert.Len(t, decoded.Items, 3)
}

func TestCompensationJobAuditsCurrentStock(t *testing.T) {
	stocks := &stubStocks{stocks: map[int64]int64{1: 7}}
	audit := &recordingAudit{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewCompensationJob(stocks, audit, quietLogger(), metrics)

	task, err := NewSettlementCompensatedTask(compensatedEvent())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []int64{1, 9}, stocks.askedIDs)
	require.Len(t, audit.logs, 1)
	entry := audit.logs[0]
	assert.Equal(t, "invoice:compensation_reconciled", entry.Action)
	assert.Equal(t, "42", entry.EntityID)
	assert.Equal(t, "ph-a", entry.PharmacyID)
	assert.Equal(t, int64(7), entry.ActorID)
	assert.Equal(t, map[string]int64{"1": 7}, entry.Meta["current_stock"])
	assert.Equal(t, int64(2), entry.Meta["applied_deltas"])
}

func TestCompensationJobSkipsBadPayload(t *testing.T) {
	job := NewCompensationJob(&stubStocks{}, &recordingAudit{}, quietLogger(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskSettlementCompensated, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskSettlementCompensated, []byte(`{"invoice_id":1}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestCompensationJobRetriesOnStoreError(t *testing.T) {
	boom := errors.New("db down")
	audit := &recordingAudit{}
	job := NewCompensationJob(&stubStocks{err: boom}, audit, quietLogger(), nil)
	task, err := NewSettlementCompensatedTask(compensatedEvent())
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, audit.logs)
}

func TestIdempotencyCleanupUsesRetention(t *testing.T) {
	cleaner := &stubCleaner{removed: 3}
	job := NewIdempotencyCleanupJob(cleaner, quietLogger(), nil)

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, cleaner.olderThan)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, DefaultIdempotencyRetention, cleaner.olderThan)
}

func TestNegativeStockScanAuditsEachMedicine(t *testing.T) {
	stocks := &stubStocks{negatives: []invoicing.NegativeStock{
		{MedicineID: 3, PharmacyID: "ph-a", Title: "Napa", Stock: -2},
		{MedicineID: 8, PharmacyID: "ph-b", Title: "Seclo", Stock: -1},
	}}
	audit := &recordingAudit{}
	job := NewNegativeStockScanJob(stocks, audit, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), NewNegativeStockScanTask()))
	require.Len(t, audit.logs, 2)
	assert.Equal(t, "stock:negative", audit.logs[0].Action)
	assert.Equal(t, "3", audit.logs[0].EntityID)
	assert.Equal(t, "ph-b", audit.logs[1].PharmacyID)
}

func TestNewWorkerRegistersCron(t *testing.T) {
	cleanup, err := NewIdempotencyCleanupTask(DefaultIdempotencyRetention)
	require.NoError(t, err)
	worker, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    quietLogger(),
		Cron: []CronRegistration{
			{Spec: "0 3 * * *", Task: cleanup},
			{Spec: "", Task: NewNegativeStockScanTask()},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, worker.scheduler)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: cleanup}},
	})
	require.Error(t, err)
}

type stubInspector struct{}

func (stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if queue == QueueCritical {
		return nil, errors.New("redis unavailable")
	}
	return &asynq.QueueInfo{Queue: queue, Pending: 4, Retry: 1}, nil
}

func TestHandlerReportsQueues(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{}, quietLogger()).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []queueHealth `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, queueHealth{Queue: QueueCritical}, body.Data[0])
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 4, Retry: 1}, body.Data[1])
}
