package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/medistock/medistock/internal/shared"
)

// Kind identifies a reference-data table partitioned per pharmacy.
type Kind string

const (
	KindDosageForm Kind = "dosage_form"
	KindGroup      Kind = "group"
	KindCompany    Kind = "company"
)

// Valid reports whether k is a known reference kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDosageForm, KindGroup, KindCompany:
		return true
	}
	return false
}

// Label is the human name used in messages.
func (k Kind) Label() string {
	switch k {
	case KindDosageForm:
		return "Dosage form"
	case KindGroup:
		return "Group"
	case KindCompany:
		return "Company"
	}
	return string(k)
}

// MaxNameLength is the upper bound on reference names, in characters.
func (k Kind) MaxNameLength() int {
	if k == KindDosageForm {
		return 30
	}
	return 100
}

// Reference is a dosage form, group or company.
type Reference struct {
	ID         int64     `json:"id"`
	Kind       Kind      `json:"-"`
	Name       string    `json:"name"`
	PharmacyID string    `json:"pharmacy_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Category classifies medicines.
type Category string

const (
	CategoryMedicine Category = "medicine"
	CategoryOther    Category = "other"
)

// Medicine is a stock-keeping unit within a pharmacy.
type Medicine struct {
	ID            int64           `json:"id"`
	Title         string          `json:"medicine_title"`
	Name          string          `json:"medicine_name"`
	Strength      string          `json:"strength"`
	DosageForm    string          `json:"dosage_form"`
	Company       string          `json:"company"`
	Group         string          `json:"group"`
	Category      Category        `json:"category"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Stock         int64           `json:"stock"`
	PharmacyID    string          `json:"pharmacy_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MedicineTitle composes the display title searched by listings.
func MedicineTitle(dosageForm, name, strength string) string {
	return dosageForm + " " + name + " " + strength
}

// MedicineInput carries the fields accepted on create.
type MedicineInput struct {
	Name          string           `json:"medicine_name" validate:"required,max=500"`
	Group         string           `json:"group" validate:"required"`
	Company       string           `json:"company" validate:"required"`
	Strength      string           `json:"strength" validate:"required"`
	DosageForm    string           `json:"dosage_form" validate:"required"`
	Category      Category         `json:"category" validate:"required,oneof=medicine other"`
	PurchasePrice *decimal.Decimal `json:"purchase_price" validate:"required"`
	SellPrice     *decimal.Decimal `json:"sell_price" validate:"required"`
}

// ListFilters controls reference listings.
type ListFilters struct {
	Search string
	Page   shared.Page
}

// MedicineFilters controls medicine listings.
type MedicineFilters struct {
	Search    string
	Page      shared.Page
	SortPrice string
	StockLeft string
	Company   string
	Group     string
	Category  string
}

// ReferenceList is one page of references with the total match count.
type ReferenceList struct {
	Items      []Reference        `json:"items"`
	Total      int                `json:"total"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
}

// Totals are inventory valuations over a full match set.
type Totals struct {
	Purchase decimal.Decimal `json:"total_purchase_value"`
	Sales    decimal.Decimal `json:"total_sales_value"`
}

// MedicineList is one page of medicines plus aggregates over every match.
type MedicineList struct {
	Items      []Medicine         `json:"items"`
	Total      int                `json:"total"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
	Totals     Totals             `json:"totals"`
}
