package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/medistock/medistock/internal/shared"
)

// Service coordinates catalog persistence and listing caches.
type Service struct {
	repo     Repository
	cache    *Cache
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a catalog Service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		logger:   logger,
		validate: shared.NewValidator(),
		now:      time.Now,
	}
}

// CreateReference adds a dosage form, group or company to a pharmacy.
func (s *Service) CreateReference(ctx context.Context, pharmacyID string, kind Kind, name string) (Reference, error) {
	if err := requireTenant(pharmacyID); err != nil {
		return Reference{}, err
	}
	if !kind.Valid() {
		return Reference{}, fmt.Errorf("%w: unknown catalog kind %q", shared.ErrInvalidInput, kind)
	}
	name, err := checkName(kind.Label(), name, kind.MaxNameLength())
	if err != nil {
		return Reference{}, err
	}
	exists, err := s.repo.ReferenceExists(ctx, kind, pharmacyID, name)
	if err != nil {
		return Reference{}, err
	}
	if exists {
		return Reference{}, fmt.Errorf("%w: %s already exist", shared.ErrConflict, kind.Label())
	}
	return s.repo.InsertReference(ctx, Reference{
		Kind:       kind,
		Name:       name,
		PharmacyID: pharmacyID,
		CreatedAt:  s.now().UTC(),
	})
}

// ListReferences returns references ordered by name, paginated when a limit is set.
func (s *Service) ListReferences(ctx context.Context, pharmacyID string, kind Kind, filters ListFilters) (ReferenceList, error) {
	if err := requireTenant(pharmacyID); err != nil {
		return ReferenceList{}, err
	}
	filters.Search = strings.TrimSpace(filters.Search)
	items, total, err := s.repo.ListReferences(ctx, kind, pharmacyID, filters)
	if err != nil {
		return ReferenceList{}, err
	}
	return ReferenceList{Items: items, Total: total, Pagination: paginationFor(filters.Page, total)}, nil
}

// GetReference loads a reference inside the pharmacy partition.
func (s *Service) GetReference(ctx context.Context, pharmacyID string, kind Kind, id int64) (Reference, error) {
	if err := requireTenant(pharmacyID); err != nil {
		return Reference{}, err
	}
	if id <= 0 {
		return Reference{}, fmt.Errorf("%w: %s", shared.ErrNotFound, strings.ToLower(kind.Label()))
	}
	return s.repo.GetReference(ctx, kind, pharmacyID, id)
}

// DeleteReference removes a reference by id. The row is not checked against
// the caller's pharmacy.
func (s *Service) DeleteReference(ctx context.Context, kind Kind, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, strings.ToLower(kind.Label()))
	}
	if err := s.repo.DeleteReference(ctx, kind, id); err != nil {
		return err
	}
	return nil
}

// CreateMedicine validates and stores a medicine with zero stock.
func (s *Service) CreateMedicine(ctx context.Context, pharmacyID string, input MedicineInput) (Medicine, error) {
	if err := requireTenant(pharmacyID); err != nil {
		return Medicine{}, err
	}
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Medicine{}, err
	}
	if input.PurchasePrice.IsNegative() || input.SellPrice.IsNegative() {
		return Medicine{}, fmt.Errorf("%w: prices must not be negative", shared.ErrInvalidInput)
	}
	if input.PurchasePrice.GreaterThan(*input.SellPrice) {
		return Medicine{}, fmt.Errorf("%w: Purchase Price cannot be greater than Sell Price", shared.ErrInvalidInput)
	}
	name, err := checkName("Medicine Name", input.Name, 500)
	if err != nil {
		return Medicine{}, err
	}
	dosageForm := shared.NormalizeName(input.DosageForm)
	strength := strings.TrimSpace(input.Strength)

	exists, err := s.repo.MedicineExists(ctx, pharmacyID, name, dosageForm, strength)
	if err != nil {
		return Medicine{}, err
	}
	if exists {
		return Medicine{}, fmt.Errorf("%w: Medicine already exist", shared.ErrConflict)
	}

	med, err := s.repo.InsertMedicine(ctx, Medicine{
		Title:         MedicineTitle(dosageForm, name, strength),
		Name:          name,
		Strength:      strength,
		DosageForm:    dosageForm,
		Company:       shared.NormalizeName(input.Company),
		Group:         shared.NormalizeName(input.Group),
		Category:      input.Category,
		PurchasePrice: *input.PurchasePrice,
		SellPrice:     *input.SellPrice,
		Stock:         0,
		PharmacyID:    pharmacyID,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return Medicine{}, err
	}
	s.invalidate(ctx, pharmacyID)
	return med, nil
}

// ListMedicines returns a page of medicines and valuation totals over every match.
func (s *Service) ListMedicines(ctx context.Context, pharmacyID string, filters MedicineFilters) (MedicineList, error) {
	if err := requireTenant(pharmacyID); err != nil {
		return MedicineList{}, err
	}
	filters.Search = strings.TrimSpace(filters.Search)
	key, err := s.cache.BuildKey(ctx, pharmacyID, "medicines", medicineFilterToken(filters))
	if err != nil {
		s.logger.Warn("catalog cache key", slog.Any("error", err))
		return s.loadMedicines(ctx, pharmacyID, filters)
	}
	var out MedicineList
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.loadMedicines(ctx, pharmacyID, filters)
	})
	if err != nil {
		return MedicineList{}, err
	}
	return out, nil
}

func (s *Service) loadMedicines(ctx context.Context, pharmacyID string, filters MedicineFilters) (MedicineList, error) {
	var (
		items  []Medicine
		total  int
		totals Totals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, total, err = s.repo.ListMedicines(gctx, pharmacyID, filters)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.repo.MedicineTotals(gctx, pharmacyID, filters)
		return err
	})
	if err := g.Wait(); err != nil {
		return MedicineList{}, err
	}
	return MedicineList{
		Items:      items,
		Total:      total,
		Pagination: paginationFor(filters.Page, total),
		Totals:     totals,
	}, nil
}

// GetMedicine loads a medicine inside the pharmacy partition.
func (s *Service) GetMedicine(ctx context.Context, pharmacyID string, id int64) (Medicine, error) {
	if err := requireTenant(pharmacyID); err != nil {
		return Medicine{}, err
	}
	if id <= 0 {
		return Medicine{}, fmt.Errorf("%w: item", shared.ErrNotFound)
	}
	return s.repo.GetMedicine(ctx, pharmacyID, id)
}

// DeleteMedicine removes a medicine by id. Like DeleteReference it does not
// check the caller's pharmacy.
func (s *Service) DeleteMedicine(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: medicine", shared.ErrNotFound)
	}
	pharmacyID, err := s.repo.DeleteMedicine(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, pharmacyID)
	return nil
}

// InvalidateMedicines drops cached listings after stock changed elsewhere.
func (s *Service) InvalidateMedicines(ctx context.Context, pharmacyID string) error {
	return s.cache.Bump(ctx, pharmacyID)
}

func (s *Service) invalidate(ctx context.Context, pharmacyID string) {
	if err := s.cache.Bump(ctx, pharmacyID); err != nil {
		s.logger.Warn("catalog cache bump", slog.String("pharmacy_id", pharmacyID), slog.Any("error", err))
	}
}

func requireTenant(pharmacyID string) error {
	if strings.TrimSpace(pharmacyID) == "" {
		return fmt.Errorf("%w: account is not attached to a pharmacy", shared.ErrForbidden)
	}
	return nil
}

func checkName(label, raw string, max int) (string, error) {
	name := shared.NormalizeName(raw)
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return "", fmt.Errorf("%w: %s is required", shared.ErrInvalidInput, label)
	}
	if n > max {
		return "", fmt.Errorf("%w: %s must be between 1 and %d characters", shared.ErrInvalidInput, label, max)
	}
	return name, nil
}

func paginationFor(page shared.Page, total int) *shared.Pagination {
	if !page.Paginated() {
		return nil
	}
	p := shared.NewPagination(page.Number, page.Limit, total)
	return &p
}

func medicineFilterToken(f MedicineFilters) string {
	return strings.Join([]string{
		"q=" + strings.ToLower(f.Search),
		"p=" + strconv.Itoa(f.Page.Number),
		"l=" + strconv.Itoa(f.Page.Limit),
		"sp=" + strings.ToLower(f.SortPrice),
		"sl=" + strings.ToLower(f.StockLeft),
		"co=" + f.Company,
		"gr=" + f.Group,
		"ca=" + f.Category,
	}, "|")
}
