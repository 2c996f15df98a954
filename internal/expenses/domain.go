package expenses

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an operating cost booked against a pharmacy.
type Expense struct {
	ID         int64           `json:"id"`
	Code       string          `json:"expense_id"`
	PharmacyID string          `json:"pharmacy_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"total_bill"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AddInput is the payload for booking an expense.
type AddInput struct {
	Title     string           `json:"title"`
	TotalBill *decimal.Decimal `json:"total_bill"`
}

// ListQuery selects expenses by a single day, a month or a date range.
type ListQuery struct {
	Date      string
	Month     string
	StartDate string
	EndDate   string
}
