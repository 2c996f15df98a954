// Package httpx provides the JSON envelope used by every API response.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/medistock/medistock/internal/shared"
)

// Envelope is the response body shape shared by all endpoints.
type Envelope struct {
	Success            bool               `json:"success"`
	Message            string             `json:"message"`
	Data               any                `json:"data,omitempty"`
	DataFound          *int               `json:"data_found,omitempty"`
	Pagination         *shared.Pagination `json:"pagination,omitempty"`
	TotalPurchaseValue *decimal.Decimal   `json:"total_purchase_value,omitempty"`
	TotalSalesValue    *decimal.Decimal   `json:"total_sales_value,omitempty"`
	AccessToken        string             `json:"accessToken,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a successful envelope carrying data.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Fail sends an unsuccessful envelope.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

// Count returns a pointer for the data_found field.
func Count(n int) *int {
	return &n
}
