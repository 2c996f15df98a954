package expenses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medistock/medistock/internal/ids"
	"github.com/medistock/medistock/internal/shared"
)

// Service books and lists pharmacy expenses.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Add books an expense under a fresh code.
func (s *Service) Add(ctx context.Context, pharmacyID string, input AddInput) (Expense, error) {
	if err := requireTenant(pharmacyID); err != nil {
		return Expense{}, err
	}
	title := shared.NormalizeName(input.Title)
	if title == "" {
		return Expense{}, fmt.Errorf("%w: Title is required", shared.ErrInvalidInput)
	}
	if input.TotalBill == nil || input.TotalBill.IsZero() {
		return Expense{}, fmt.Errorf("%w: Total bill is required", shared.ErrInvalidInput)
	}
	now := s.now().UTC()
	created, err := s.repo.Insert(ctx, Expense{
		Code:       ids.NewAt(now),
		PharmacyID: pharmacyID,
		Title:      title,
		Amount:     *input.TotalBill,
		CreatedAt:  now,
	})
	if err != nil {
		return Expense{}, err
	}
	if s.logger != nil {
		s.logger.Debug("expense added", slog.String("pharmacy_id", pharmacyID), slog.String("code", created.Code))
	}
	return created, nil
}

// List returns the pharmacy's expenses inside the requested window, or all of
// them when no filter is given.
func (s *Service) List(ctx context.Context, pharmacyID string, query ListQuery) ([]Expense, error) {
	if err := requireTenant(pharmacyID); err != nil {
		return nil, err
	}
	window, err := s.resolveWindow(query)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, pharmacyID, window)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Expense{}
	}
	return items, nil
}

// Remove deletes an expense by code within the pharmacy.
func (s *Service) Remove(ctx context.Context, pharmacyID, code string) error {
	if err := requireTenant(pharmacyID); err != nil {
		return err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ids.Valid(code) {
		return fmt.Errorf("%w: Expense not found", shared.ErrNotFound)
	}
	return s.repo.Delete(ctx, pharmacyID, code)
}

// resolveWindow applies a range over a month over a single day. Either end of
// a range may be omitted: start falls back to the epoch, end to today.
func (s *Service) resolveWindow(q ListQuery) (*shared.TimeWindow, error) {
	date, month := strings.TrimSpace(q.Date), strings.TrimSpace(q.Month)
	start, end := strings.TrimSpace(q.StartDate), strings.TrimSpace(q.EndDate)

	var (
		w   shared.TimeWindow
		err error
	)
	switch {
	case start != "" || end != "":
		if start == "" {
			start = "1970-01-01"
		}
		if end == "" {
			end = s.now().UTC().Format(shared.DateLayout)
		}
		w, err = shared.RangeWindow(start, end)
	case month != "":
		w, err = shared.MonthWindow(month)
	case date != "":
		w, err = shared.DayWindow(date)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func requireTenant(pharmacyID string) error {
	if strings.TrimSpace(pharmacyID) == "" {
		return fmt.Errorf("%w: account is not attached to a pharmacy", shared.ErrForbidden)
	}
	return nil
}
