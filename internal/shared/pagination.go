package shared

import (
	"math"
	"strconv"
)

const (
	// DefaultPage is used when the page query value is missing or invalid.
	DefaultPage = 1
	// DefaultLimit applies to listings that always paginate.
	DefaultLimit = 10
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	TotalPages   int  `json:"totalPages"`
	CurrentPage  int  `json:"currentPage"`
	PreviousPage *int `json:"previousPage"`
	NextPage     *int `json:"nextPage"`
}

// Page describes an offset window. A zero Limit means no pagination.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Limit <= 0 || p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// Paginated reports whether a limit was supplied.
func (p Page) Paginated() bool {
	return p.Limit > 0
}

// ParsePage reads page/limit query values. An absent or non-positive limit yields
// an unpaginated window unless fallbackLimit is positive.
func ParsePage(rawPage, rawLimit string, fallbackLimit int) Page {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit < 1 {
		limit = fallbackLimit
	}
	return Page{Number: page, Limit: limit}
}

// NewPagination computes pagination metadata.
func NewPagination(page, limit, total int) Pagination {
	if page <= 0 {
		page = DefaultPage
	}
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	p := Pagination{TotalPages: totalPages, CurrentPage: page}
	if page > 1 {
		prev := page - 1
		p.PreviousPage = &prev
	}
	if page < totalPages {
		next := page + 1
		p.NextPage = &next
	}
	return p
}
