package invoicing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medistock/medistock/internal/auth"
)

func newInvoiceRouter(t *testing.T, f *fixture) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, f.svc, NewQueryService(f.repo))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			subject := auth.Subject{UserID: 7, PharmacyID: "ph-a", Role: auth.RoleAdmin}
			next.ServeHTTP(w, req.WithContext(auth.ContextWithSubject(req.Context(), subject)))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestHandlerCreatePurchaseInvoice(t *testing.T) {
	f := newFixture(ModeSaga)
	f.repo.addMedicine(1, "ph-a", 10)
	router := newInvoiceRouter(t, f)

	body := `{"total_discount":"0","sub_total_bill":50,"final_bill":50,"items":[{"medicine_id":1,"quantity":5}]}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/purchase-invoices/invoice-create", strings.NewReader(body))
	req.Header.Set(IdempotencyHeader, "abc")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.EqualValues(t, 15, f.repo.stock(1))

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/purchase-invoices/invoice-create", strings.NewReader(body))
	req.Header.Set(IdempotencyHeader, "abc")
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerSettlementFailureMessage(t *testing.T) {
	f := newFixture(ModeSaga)
	router := newInvoiceRouter(t, f)

	body := `{"total_discount":0,"sub_total_bill":10,"final_bill":10,"items":[{"medicine_id":404,"quantity":1}]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sold-invoices/invoice-create", strings.NewReader(body)))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, "Failed to update stock. Invoice creation rolled back.", envelope["message"])
}

func TestHandlerRejectsNonNumericTotals(t *testing.T) {
	f := newFixture(ModeSaga)
	router := newInvoiceRouter(t, f)

	body := `{"total_discount":"abc","sub_total_bill":10,"final_bill":10,"items":[{"medicine_id":1,"quantity":1}]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sold-invoices/invoice-create", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerListAndGet(t *testing.T) {
	f := newFixture(ModeSaga)
	f.repo.addMedicine(1, "ph-a", 10)
	router := newInvoiceRouter(t, f)

	body := `{"total_discount":0,"sub_total_bill":10,"final_bill":10,"status":"paid","items":[{"medicine_id":1,"quantity":1}]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sold-invoices/invoice-create", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sold-invoices", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.EqualValues(t, 1, envelope["data_found"])
	assert.Contains(t, envelope, "pagination")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sold-invoices/get-single/not-a-number", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/purchase-invoices/get-single/1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sold-invoices?date=2024-01-01&month=2024-01", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
