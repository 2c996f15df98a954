package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes purchase invoices (stock in) from sale invoices (stock out).
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindSale     Kind = "sale"
)

// Valid reports whether k is a known invoice kind.
func (k Kind) Valid() bool {
	return k == KindPurchase || k == KindSale
}

// Sign is the direction applied to line quantities when settling.
func (k Kind) Sign() int64 {
	if k == KindSale {
		return -1
	}
	return 1
}

// Status is the payment state of a sale.
type Status string

const (
	StatusPaid Status = "paid"
	StatusDue  Status = "due"
)

// Mode selects how settlement keeps invoices and stock consistent.
type Mode string

const (
	// ModeSaga inserts, adjusts stock, and deletes the invoice when the
	// adjustment only partially applied.
	ModeSaga Mode = "saga"
	// ModeTx runs the whole settlement in one database transaction.
	ModeTx Mode = "tx"
)

// State is the terminal state of a settlement attempt.
type State string

const (
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

// LineItem references a medicine and a signed quantity.
type LineItem struct {
	MedicineID int64            `json:"medicine_id"`
	Title      string           `json:"medicine_title,omitempty"`
	Quantity   int64            `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreatorInfo is the creator projection joined onto invoice lookups.
type CreatorInfo struct {
	Email string `json:"email"`
}

// Invoice is a recorded purchase or sale.
type Invoice struct {
	ID              int64           `json:"id"`
	Kind            Kind            `json:"kind"`
	PharmacyID      string          `json:"pharmacy_id"`
	Items           []LineItem      `json:"items"`
	SubTotal        decimal.Decimal `json:"sub_total_bill"`
	Discount        decimal.Decimal `json:"total_discount"`
	FinalTotal      decimal.Decimal `json:"final_bill"`
	Status          Status          `json:"status,omitempty"`
	CustomerContact string          `json:"customer_contact,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	CreatedByInfo   *CreatorInfo    `json:"created_by_info,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StockDelta is one stock adjustment derived from a line item.
type StockDelta struct {
	MedicineID int64
	Delta      int64
}

// Deltas converts line items into signed stock adjustments.
func (inv Invoice) Deltas() []StockDelta {
	deltas := make([]StockDelta, 0, len(inv.Items))
	sign := inv.Kind.Sign()
	for _, item := range inv.Items {
		deltas = append(deltas, StockDelta{MedicineID: item.MedicineID, Delta: sign * item.Quantity})
	}
	return deltas
}

// SettleInput is the request to record an invoice and move stock.
type SettleInput struct {
	Kind            Kind             `json:"-"`
	PharmacyID      string           `json:"-"`
	ActorID         int64            `json:"-"`
	IdempotencyKey  string           `json:"-"`
	Items           []LineItem       `json:"items" validate:"required,min=1,dive"`
	SubTotal        *decimal.Decimal `json:"sub_total_bill" validate:"required"`
	Discount        *decimal.Decimal `json:"total_discount" validate:"required"`
	FinalTotal      *decimal.Decimal `json:"final_bill" validate:"required"`
	Status          Status           `json:"status" validate:"omitempty,oneof=paid due"`
	CustomerContact string           `json:"customer_contact"`
}

// Settlement reports the outcome of a settlement attempt.
type Settlement struct {
	InvoiceID int64
	State     State
	// Applied counts stock rows actually modified.
	Applied int64
}

// ListQuery filters invoice listings. At most one of Date, the
// StartDate/EndDate pair, or Month may be set.
type ListQuery struct {
	Date      string
	StartDate string
	EndDate   string
	Month     string
	Page      int
	Limit     int
}

// NegativeStock is a medicine whose stock dropped below zero.
type NegativeStock struct {
	MedicineID int64  `json:"medicine_id"`
	PharmacyID string `json:"pharmacy_id"`
	Title      string `json:"medicine_title"`
	Stock      int64  `json:"stock"`
}
