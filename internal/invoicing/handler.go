package invoicing

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medistock/medistock/internal/auth"
	"github.com/medistock/medistock/internal/platform/httpx"
	"github.com/medistock/medistock/internal/shared"
)

// IdempotencyHeader carries the client-chosen replay key on create requests.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes invoice endpoints as JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	queries *QueryService
}

// NewHandler builds an invoicing Handler.
func NewHandler(logger *slog.Logger, service *Service, queries *QueryService) *Handler {
	return &Handler{logger: logger, service: service, queries: queries}
}

// MountRoutes registers invoice routes. The caller applies authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sold-invoices", func(r chi.Router) {
		r.Post("/invoice-create", h.create(KindSale, "Sold successfully"))
		r.Get("/get-single/{id}", h.get(KindSale))
		r.Get("/", h.list(KindSale, "Sold invoices retrieved successfully"))
	})
	r.Route("/purchase-invoices", func(r chi.Router) {
		r.Post("/invoice-create", h.create(KindPurchase, "Purchased successfully"))
		r.Get("/get-single/{id}", h.get(KindPurchase))
		r.Get("/", h.list(KindPurchase, "Purchase invoices retrieved successfully"))
	})
}

func (h *Handler) create(kind Kind, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := auth.SubjectFromContext(r.Context())
		if !ok {
			h.fail(w, r, shared.ErrUnauthorized)
			return
		}
		var input SettleInput
		if err := httpx.DecodeJSON(r, &input); err != nil {
			h.fail(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}
		input.Kind = kind
		input.PharmacyID = subject.PharmacyID
		input.ActorID = subject.UserID
		input.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))

		result, err := h.service.Settle(r.Context(), input)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.OK(w, message, result.InvoiceID)
	}
}

func (h *Handler) get(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := auth.SubjectFromContext(r.Context())
		if !ok {
			h.fail(w, r, shared.ErrUnauthorized)
			return
		}
		inv, err := h.queries.GetByID(r.Context(), subject.PharmacyID, kind, chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.OK(w, "Invoice retrieved successfully", inv)
	}
}

func (h *Handler) list(kind Kind, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := auth.SubjectFromContext(r.Context())
		if !ok {
			h.fail(w, r, shared.ErrUnauthorized)
			return
		}
		q := r.URL.Query()
		page := shared.ParsePage(q.Get("page"), q.Get("limit"), shared.DefaultLimit)
		list, err := h.queries.List(r.Context(), subject.PharmacyID, kind, ListQuery{
			Date:      q.Get("date"),
			StartDate: q.Get("start_date"),
			EndDate:   q.Get("end_date"),
			Month:     q.Get("month"),
			Page:      page.Number,
			Limit:     page.Limit,
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, httpx.Envelope{
			Success:    true,
			Message:    message,
			Data:       list.Items,
			DataFound:  httpx.Count(list.Total),
			Pagination: &list.Pagination,
		})
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("invoice request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
