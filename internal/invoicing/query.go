package invoicing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/medistock/medistock/internal/shared"
)

// InvoiceList is one page of invoices.
type InvoiceList struct {
	Items      []Invoice
	Total      int
	Pagination shared.Pagination
}

// QueryService serves tenant-scoped invoice reads.
type QueryService struct {
	repo QueryRepository
}

// NewQueryService constructs a QueryService.
func NewQueryService(repo QueryRepository) *QueryService {
	return &QueryService{repo: repo}
}

// GetByID loads one invoice. A malformed id is invalid input; an id outside the
// pharmacy is not found.
func (q *QueryService) GetByID(ctx context.Context, pharmacyID string, kind Kind, rawID string) (Invoice, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id <= 0 {
		return Invoice{}, fmt.Errorf("%w: Invalid invoice ID", shared.ErrInvalidInput)
	}
	return q.repo.GetInvoice(ctx, pharmacyID, kind, id)
}

// List returns invoices of kind filtered by at most one date filter.
func (q *QueryService) List(ctx context.Context, pharmacyID string, kind Kind, query ListQuery) (InvoiceList, error) {
	window, err := ResolveWindow(query.Date, query.StartDate, query.EndDate, query.Month)
	if err != nil {
		return InvoiceList{}, err
	}
	page := shared.Page{Number: query.Page, Limit: query.Limit}
	if page.Number < 1 {
		page.Number = shared.DefaultPage
	}
	if page.Limit < 1 {
		page.Limit = shared.DefaultLimit
	}
	items, total, err := q.repo.ListInvoices(ctx, pharmacyID, kind, window, page)
	if err != nil {
		return InvoiceList{}, err
	}
	return InvoiceList{
		Items:      items,
		Total:      total,
		Pagination: shared.NewPagination(page.Number, page.Limit, total),
	}, nil
}

// ResolveWindow turns the date query parameters into a time window. It returns
// nil when no filter is set and fails when more than one is.
func ResolveWindow(date, start, end, month string) (*shared.TimeWindow, error) {
	date, start, end, month = strings.TrimSpace(date), strings.TrimSpace(start), strings.TrimSpace(end), strings.TrimSpace(month)
	set := 0
	for _, v := range []string{date, start + end, month} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("%w: use only one of date, start_date/end_date or month", shared.ErrInvalidInput)
	}
	var (
		w   shared.TimeWindow
		err error
	)
	switch {
	case date != "":
		w, err = shared.DayWindow(date)
	case start != "" || end != "":
		if start == "" || end == "" {
			return nil, fmt.Errorf("%w: start_date and end_date must be provided together", shared.ErrInvalidInput)
		}
		w, err = shared.RangeWindow(start, end)
	case month != "":
		w, err = shared.MonthWindow(month)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
