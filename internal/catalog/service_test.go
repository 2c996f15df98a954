package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/medistock/medistock/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	refs      []Reference
	medicines []Medicine
	nextID    int64
	listCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{}
}

func (r *memoryRepo) ReferenceExists(ctx context.Context, kind Kind, pharmacyID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.refs {
		if ref.Kind == kind && ref.PharmacyID == pharmacyID && ref.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) InsertReference(ctx context.Context, ref Reference) (Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ref.ID = r.nextID
	r.refs = append(r.refs, ref)
	return ref, nil
}

func (r *memoryRepo) ListReferences(ctx context.Context, kind Kind, pharmacyID string, filters ListFilters) ([]Reference, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]Reference, 0)
	for _, ref := range r.refs {
		if ref.Kind != kind || ref.PharmacyID != pharmacyID {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(ref.Name), strings.ToLower(filters.Search)) {
			continue
		}
		matched = append(matched, ref)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return window(matched, filters.Page), len(matched), nil
}

func (r *memoryRepo) GetReference(ctx context.Context, kind Kind, pharmacyID string, id int64) (Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.refs {
		if ref.Kind == kind && ref.PharmacyID == pharmacyID && ref.ID == id {
			return ref, nil
		}
	}
	return Reference{}, shared.ErrNotFound
}

func (r *memoryRepo) DeleteReference(ctx context.Context, kind Kind, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ref := range r.refs {
		if ref.Kind == kind && ref.ID == id {
			r.refs = append(r.refs[:i], r.refs[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryRepo) MedicineExists(ctx context.Context, pharmacyID, name, dosageForm, strength string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, med := range r.medicines {
		if med.PharmacyID == pharmacyID && med.Name == name && med.DosageForm == dosageForm && med.Strength == strength {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) InsertMedicine(ctx context.Context, med Medicine) (Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	med.ID = r.nextID
	r.medicines = append(r.medicines, med)
	return med, nil
}

func (r *memoryRepo) matchMedicines(pharmacyID string, filters MedicineFilters) []Medicine {
	matched := make([]Medicine, 0)
	for _, med := range r.medicines {
		if med.PharmacyID != pharmacyID {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(med.Title), strings.ToLower(filters.Search)) {
			continue
		}
		if filters.Company != "" && med.Company != filters.Company {
			continue
		}
		if filters.Group != "" && med.Group != filters.Group {
			continue
		}
		if filters.Category != "" && string(med.Category) != filters.Category {
			continue
		}
		matched = append(matched, med)
	}
	return matched
}

func (r *memoryRepo) ListMedicines(ctx context.Context, pharmacyID string, filters MedicineFilters) ([]Medicine, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	matched := r.matchMedicines(pharmacyID, filters)
	sort.SliceStable(matched, func(i, j int) bool {
		switch {
		case filters.StockLeft == "high":
			return matched[i].Stock > matched[j].Stock
		case filters.StockLeft == "low":
			return matched[i].Stock < matched[j].Stock
		case filters.SortPrice == "high":
			return matched[i].SellPrice.GreaterThan(matched[j].SellPrice)
		case filters.SortPrice == "low":
			return matched[i].SellPrice.LessThan(matched[j].SellPrice)
		}
		return matched[i].Name < matched[j].Name
	})
	return window(matched, filters.Page), len(matched), nil
}

func (r *memoryRepo) MedicineTotals(ctx context.Context, pharmacyID string, filters MedicineFilters) (Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := Totals{Purchase: decimal.Zero, Sales: decimal.Zero}
	for _, med := range r.matchMedicines(pharmacyID, filters) {
		stock := decimal.NewFromInt(med.Stock)
		totals.Purchase = totals.Purchase.Add(stock.Mul(med.PurchasePrice))
		totals.Sales = totals.Sales.Add(stock.Mul(med.SellPrice))
	}
	return totals, nil
}

func (r *memoryRepo) GetMedicine(ctx context.Context, pharmacyID string, id int64) (Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, med := range r.medicines {
		if med.PharmacyID == pharmacyID && med.ID == id {
			return med, nil
		}
	}
	return Medicine{}, shared.ErrNotFound
}

func (r *memoryRepo) DeleteMedicine(ctx context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, med := range r.medicines {
		if med.ID == id {
			r.medicines = append(r.medicines[:i], r.medicines[i+1:]...)
			return med.PharmacyID, nil
		}
	}
	return "", shared.ErrNotFound
}

func (r *memoryRepo) setStock(id, stock int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.medicines {
		if r.medicines[i].ID == id {
			r.medicines[i].Stock = stock
		}
	}
}

func window[T any](items []T, page shared.Page) []T {
	if !page.Paginated() {
		return items
	}
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func medicineInput(name string) MedicineInput {
	return MedicineInput{
		Name:          name,
		Group:         "Analgesic",
		Company:       "Square",
		Strength:      "500mg",
		DosageForm:    "Tablet",
		Category:      CategoryMedicine,
		PurchasePrice: price("8"),
		SellPrice:     price("10"),
	}
}

func TestCreateReferenceConflictIsPerTenant(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReference(ctx, "ph-a", KindDosageForm, "Tablet")
	require.NoError(t, err)

	_, err = svc.CreateReference(ctx, "ph-a", KindDosageForm, "  Tablet ")
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateReference(ctx, "ph-b", KindDosageForm, "Tablet")
	require.NoError(t, err)

	_, err = svc.CreateReference(ctx, "ph-a", KindGroup, "Tablet")
	require.NoError(t, err)
}

func TestCreateReferenceNormalisesUnicode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReference(ctx, "ph-a", KindCompany, "Caf\u00e9 Pharma")
	require.NoError(t, err)
	_, err = svc.CreateReference(ctx, "ph-a", KindCompany, "Cafe\u0301 Pharma")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateReferenceLengthLimits(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReference(ctx, "ph-a", KindDosageForm, "   ")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.CreateReference(ctx, "ph-a", KindDosageForm, strings.Repeat("x", 31))
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.CreateReference(ctx, "ph-a", KindGroup, strings.Repeat("x", 100))
	require.NoError(t, err)

	_, err = svc.CreateReference(ctx, "ph-a", KindCompany, strings.Repeat("x", 101))
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.CreateReference(ctx, "", KindCompany, "Square")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListReferencesPaginationAndIsolation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := svc.CreateReference(ctx, "ph-a", KindGroup, "Group "+string(rune('A'+i)))
		require.NoError(t, err)
	}
	_, err := svc.CreateReference(ctx, "ph-b", KindGroup, "Foreign")
	require.NoError(t, err)

	list, err := svc.ListReferences(ctx, "ph-a", KindGroup, ListFilters{Page: shared.Page{Number: 3, Limit: 10}})
	require.NoError(t, err)
	require.Equal(t, 25, list.Total)
	require.Len(t, list.Items, 5)
	require.NotNil(t, list.Pagination)
	require.Equal(t, 3, list.Pagination.TotalPages)
	require.Equal(t, 2, *list.Pagination.PreviousPage)
	require.Nil(t, list.Pagination.NextPage)

	all, err := svc.ListReferences(ctx, "ph-a", KindGroup, ListFilters{})
	require.NoError(t, err)
	require.Len(t, all.Items, 25)
	require.Nil(t, all.Pagination)

	foreign, err := svc.ListReferences(ctx, "ph-b", KindGroup, ListFilters{Search: "group"})
	require.NoError(t, err)
	require.Zero(t, foreign.Total)
}

func TestGetReferenceScopedToTenant(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	ref, err := svc.CreateReference(ctx, "ph-a", KindDosageForm, "Syrup")
	require.NoError(t, err)

	got, err := svc.GetReference(ctx, "ph-a", KindDosageForm, ref.ID)
	require.NoError(t, err)
	require.Equal(t, "Syrup", got.Name)

	_, err = svc.GetReference(ctx, "ph-b", KindDosageForm, ref.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.GetReference(ctx, "ph-a", KindDosageForm, 0)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteReference(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	ref, err := svc.CreateReference(ctx, "ph-a", KindCompany, "Beximco")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteReference(ctx, KindCompany, ref.ID))
	require.ErrorIs(t, svc.DeleteReference(ctx, KindCompany, ref.ID), shared.ErrNotFound)
}

func TestCreateMedicineRejectsPurchaseAboveSell(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	input := medicineInput("Napa")
	input.PurchasePrice = price("12")
	input.SellPrice = price("10")
	_, err := svc.CreateMedicine(context.Background(), "ph-a", input)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	require.Empty(t, repo.medicines)
}

func TestCreateMedicineValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	input := medicineInput("Napa")
	input.Category = "food"
	_, err := svc.CreateMedicine(ctx, "ph-a", input)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	input = medicineInput("Napa")
	input.SellPrice = nil
	_, err = svc.CreateMedicine(ctx, "ph-a", input)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	input = medicineInput(strings.Repeat("n", 501))
	_, err = svc.CreateMedicine(ctx, "ph-a", input)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCreateMedicineDefaultsAndConflict(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	med, err := svc.CreateMedicine(ctx, "ph-a", medicineInput("Napa"))
	require.NoError(t, err)
	require.Equal(t, "Tablet Napa 500mg", med.Title)
	require.Zero(t, med.Stock)

	_, err = svc.CreateMedicine(ctx, "ph-a", medicineInput("Napa"))
	require.ErrorIs(t, err, shared.ErrConflict)

	other := medicineInput("Napa")
	other.Strength = "250mg"
	_, err = svc.CreateMedicine(ctx, "ph-a", other)
	require.NoError(t, err)

	_, err = svc.CreateMedicine(ctx, "ph-b", medicineInput("Napa"))
	require.NoError(t, err)
}

func TestListMedicinesAggregatesFullMatchSet(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	a, err := svc.CreateMedicine(ctx, "ph-a", medicineInput("Alpha"))
	require.NoError(t, err)
	b, err := svc.CreateMedicine(ctx, "ph-a", medicineInput("Beta"))
	require.NoError(t, err)
	foreign, err := svc.CreateMedicine(ctx, "ph-b", medicineInput("Alpha"))
	require.NoError(t, err)
	repo.setStock(a.ID, 5)
	repo.setStock(b.ID, 2)
	repo.setStock(foreign.ID, 100)

	list, err := svc.ListMedicines(ctx, "ph-a", MedicineFilters{Page: shared.Page{Number: 1, Limit: 1}})
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	require.Len(t, list.Items, 1)
	require.Equal(t, "Alpha", list.Items[0].Name)
	require.True(t, decimal.NewFromInt(56).Equal(list.Totals.Purchase), list.Totals.Purchase.String())
	require.True(t, decimal.NewFromInt(70).Equal(list.Totals.Sales), list.Totals.Sales.String())

	byStock, err := svc.ListMedicines(ctx, "ph-a", MedicineFilters{StockLeft: "low", SortPrice: "high"})
	require.NoError(t, err)
	require.Equal(t, "Beta", byStock.Items[0].Name)
	require.Nil(t, byStock.Pagination)

	searched, err := svc.ListMedicines(ctx, "ph-a", MedicineFilters{Search: "tablet be"})
	require.NoError(t, err)
	require.Equal(t, 1, searched.Total)
}

func TestGetAndDeleteMedicine(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	med, err := svc.CreateMedicine(ctx, "ph-a", medicineInput("Napa"))
	require.NoError(t, err)

	_, err = svc.GetMedicine(ctx, "ph-b", med.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	got, err := svc.GetMedicine(ctx, "ph-a", med.ID)
	require.NoError(t, err)
	require.Equal(t, med.Title, got.Title)

	require.NoError(t, svc.DeleteMedicine(ctx, med.ID))
	require.ErrorIs(t, svc.DeleteMedicine(ctx, med.ID), shared.ErrNotFound)
	require.ErrorIs(t, svc.DeleteMedicine(ctx, -1), shared.ErrNotFound)
}
