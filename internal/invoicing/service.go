package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/medistock/medistock/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed create requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Invalidator drops cached stock views of a pharmacy.
type Invalidator interface {
	InvalidateMedicines(ctx context.Context, pharmacyID string) error
}

// CompensationNotifier hands rolled-back settlements to background processing.
type CompensationNotifier interface {
	NotifyCompensated(ctx context.Context, event CompensatedEvent) error
}

// MetricsRecorder counts settlement outcomes.
type MetricsRecorder interface {
	ObserveSettlement(kind, outcome string)
}

// CompensatedEvent describes a settlement whose invoice was removed after a
// partial stock update. Deltas that did apply remain in place.
type CompensatedEvent struct {
	InvoiceID         int64      `json:"invoice_id"`
	Kind              Kind       `json:"kind"`
	PharmacyID        string     `json:"pharmacy_id"`
	ActorID           int64      `json:"actor_id"`
	Items             []LineItem `json:"items"`
	Applied           int64      `json:"applied"`
	CompensationError string     `json:"compensation_error,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Mode Mode
	// CompensationTimeout bounds the compensating delete, which runs detached
	// from request cancellation.
	CompensationTimeout time.Duration
}

// Hooks are post-settlement collaborators. Any of them may be nil.
type Hooks struct {
	Invalidator Invalidator
	Notifier    CompensationNotifier
	Metrics     MetricsRecorder
	Logger      *slog.Logger
}

// Service settles purchase and sale invoices against the stock ledger.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	hooks       Hooks
	logger      *slog.Logger
	mode        Mode
	compTimeout time.Duration
	validator   *validator.Validate
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig, hooks Hooks) *Service {
	mode := cfg.Mode
	if mode != ModeTx {
		mode = ModeSaga
	}
	timeout := cfg.CompensationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := hooks.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		hooks:       hooks,
		logger:      logger,
		mode:        mode,
		compTimeout: timeout,
		validator:   shared.NewValidator(),
		now:         time.Now,
	}
}

// Mode reports the configured settlement mode.
func (s *Service) Mode() Mode {
	return s.mode
}

// errPartialUpdate aborts a transactional settlement.
var errPartialUpdate = errors.New("stock update failed for some items")

// Settle records the invoice and applies its stock deltas. On partial failure
// the invoice is removed and ErrSettlementFailed is returned.
func (s *Service) Settle(ctx context.Context, input SettleInput) (Settlement, error) {
	if err := s.validate(input); err != nil {
		return Settlement{}, err
	}
	if strings.TrimSpace(input.PharmacyID) == "" {
		return Settlement{}, fmt.Errorf("%w: account is not attached to a pharmacy", shared.ErrForbidden)
	}

	inv := Invoice{
		Kind:       input.Kind,
		PharmacyID: input.PharmacyID,
		Items:      input.Items,
		SubTotal:   *input.SubTotal,
		Discount:   *input.Discount,
		FinalTotal: *input.FinalTotal,
		CreatedBy:  input.ActorID,
		CreatedAt:  s.now().UTC(),
	}
	if input.Kind == KindSale {
		inv.Status = input.Status
		inv.CustomerContact = strings.TrimSpace(input.CustomerContact)
	}

	key := input.IdempotencyKey
	insertedKey := false
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "invoicing:"+string(input.Kind)); err != nil {
			return Settlement{}, err
		}
		insertedKey = true
	}

	var (
		result Settlement
		err    error
	)
	if s.mode == ModeTx {
		result, err = s.settleTx(ctx, inv)
	} else {
		result, err = s.settleSaga(ctx, inv)
	}
	if err != nil {
		if insertedKey {
			if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		s.observe(inv.Kind, outcomeFor(err))
		return result, err
	}

	s.afterCommit(ctx, inv, result)
	return result, nil
}

func (s *Service) settleSaga(ctx context.Context, inv Invoice) (Settlement, error) {
	id, err := s.repo.InsertInvoice(ctx, inv)
	if err != nil {
		return Settlement{}, err
	}
	inv.ID = id

	deltas := inv.Deltas()
	applied, applyErr := s.repo.ApplyStockDeltas(ctx, inv.PharmacyID, deltas)
	if applyErr == nil && applied == int64(len(deltas)) {
		return Settlement{InvoiceID: id, State: StateCommitted, Applied: applied}, nil
	}

	s.logger.Warn("partial stock update, compensating",
		slog.Int64("invoice_id", id),
		slog.String("kind", string(inv.Kind)),
		slog.Int64("applied", applied),
		slog.Int("expected", len(deltas)),
		slog.Any("error", applyErr))

	compErr := s.compensate(ctx, inv)
	s.afterRollback(ctx, inv, applied, compErr)
	return Settlement{InvoiceID: id, State: StateRolledBack, Applied: applied},
		fmt.Errorf("%w: %d of %d items updated", shared.ErrSettlementFailed, applied, len(deltas))
}

func (s *Service) settleTx(ctx context.Context, inv Invoice) (Settlement, error) {
	var result Settlement
	deltas := inv.Deltas()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Store) error {
		id, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		applied, err := tx.ApplyStockDeltas(ctx, inv.PharmacyID, deltas)
		if err != nil {
			return errors.Join(errPartialUpdate, err)
		}
		if applied != int64(len(deltas)) {
			return errPartialUpdate
		}
		result = Settlement{InvoiceID: id, State: StateCommitted, Applied: applied}
		return nil
	})
	if err != nil {
		if errors.Is(err, errPartialUpdate) {
			s.logger.Warn("partial stock update, transaction rolled back",
				slog.String("kind", string(inv.Kind)), slog.Any("error", err))
			s.recordAudit(ctx, inv, "invoice:rolled_back", "uncommitted", map[string]any{"mode": string(ModeTx)})
			return Settlement{State: StateRolledBack}, fmt.Errorf("%w: %v", shared.ErrSettlementFailed, err)
		}
		return Settlement{}, err
	}
	return result, nil
}

// compensate deletes the staged invoice. It runs detached from request
// cancellation so a timed-out request still cleans up.
func (s *Service) compensate(ctx context.Context, inv Invoice) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compTimeout)
	defer cancel()
	if err := s.repo.DeleteInvoice(cctx, inv.Kind, inv.ID); err != nil {
		s.logger.Error("compensating delete failed",
			slog.Int64("invoice_id", inv.ID),
			slog.String("kind", string(inv.Kind)),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, inv Invoice, result Settlement) {
	inv.ID = result.InvoiceID
	if s.hooks.Invalidator != nil {
		if err := s.hooks.Invalidator.InvalidateMedicines(ctx, inv.PharmacyID); err != nil {
			s.logger.Warn("invalidate medicine cache", slog.String("pharmacy_id", inv.PharmacyID), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, inv, "invoice:committed", "", map[string]any{
		"items":       len(inv.Items),
		"final_total": inv.FinalTotal.String(),
		"mode":        string(s.mode),
	})
	s.observe(inv.Kind, string(StateCommitted))
}

func (s *Service) afterRollback(ctx context.Context, inv Invoice, applied int64, compErr error) {
	ctx = context.WithoutCancel(ctx)
	meta := map[string]any{"applied": applied, "expected": len(inv.Items), "mode": string(ModeSaga)}
	action := "invoice:rolled_back"
	errText := ""
	if compErr != nil {
		action = "invoice:compensation_failed"
		errText = compErr.Error()
		meta["error"] = errText
	}
	s.recordAudit(ctx, inv, action, strconv.FormatInt(inv.ID, 10), meta)

	// Applied deltas survive the rollback.
	if applied > 0 && s.hooks.Invalidator != nil {
		if err := s.hooks.Invalidator.InvalidateMedicines(ctx, inv.PharmacyID); err != nil {
			s.logger.Warn("invalidate medicine cache", slog.String("pharmacy_id", inv.PharmacyID), slog.Any("error", err))
		}
	}
	if s.hooks.Notifier != nil {
		event := CompensatedEvent{
			InvoiceID:         inv.ID,
			Kind:              inv.Kind,
			PharmacyID:        inv.PharmacyID,
			ActorID:           inv.CreatedBy,
			Items:             inv.Items,
			Applied:           applied,
			CompensationError: errText,
			OccurredAt:        s.now().UTC(),
		}
		if err := s.hooks.Notifier.NotifyCompensated(ctx, event); err != nil {
			s.logger.Warn("enqueue compensation follow-up", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, inv Invoice, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if entityID == "" {
		entityID = strconv.FormatInt(inv.ID, 10)
	}
	meta["kind"] = string(inv.Kind)
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:    inv.CreatedBy,
		PharmacyID: inv.PharmacyID,
		Action:     action,
		Entity:     "invoice",
		EntityID:   entityID,
		Meta:       meta,
	})
	if err != nil {
		s.logger.Warn("audit settlement", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) observe(kind Kind, outcome string) {
	if s.hooks.Metrics != nil {
		s.hooks.Metrics.ObserveSettlement(string(kind), outcome)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, shared.ErrSettlementFailed):
		return string(StateRolledBack)
	case errors.Is(err, shared.ErrConflict):
		return "duplicate"
	default:
		return "error"
	}
}
