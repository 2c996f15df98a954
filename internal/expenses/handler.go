package expenses

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medistock/medistock/internal/auth"
	"github.com/medistock/medistock/internal/platform/httpx"
	"github.com/medistock/medistock/internal/shared"
)

// Handler exposes expense endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers expense routes under /expenses.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/expenses", func(r chi.Router) {
		r.Post("/expense-create", h.add)
		r.Get("/", h.list)
		r.Delete("/delete/{code}", h.remove)
	})
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.fail(w, r, shared.ErrUnauthorized)
		return
	}
	var input AddInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, fmt.Errorf("%w: Total bill must be a valid number", shared.ErrInvalidInput))
		return
	}
	if _, err := h.service.Add(r.Context(), subject.PharmacyID, input); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Expense added successfully"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.fail(w, r, shared.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), subject.PharmacyID, ListQuery{
		Date:      q.Get("date"),
		Month:     q.Get("month"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Expenses retrieved successfully.", items)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.fail(w, r, shared.ErrUnauthorized)
		return
	}
	if err := h.service.Remove(r.Context(), subject.PharmacyID, chi.URLParam(r, "code")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Expense removed successfully"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("expenses request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
