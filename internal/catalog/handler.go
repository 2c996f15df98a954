package catalog

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medistock/medistock/internal/auth"
	"github.com/medistock/medistock/internal/platform/httpx"
	"github.com/medistock/medistock/internal/shared"
)

// Handler exposes catalog endpoints as JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a catalog Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes. The caller applies authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/dosage-forms", func(r chi.Router) {
		r.Post("/dosage-form-create", h.createReference(KindDosageForm, "dosage_form"))
		r.Get("/find-dosage-form/{id}", h.getReference(KindDosageForm))
		r.Get("/", h.listReferences(KindDosageForm))
		r.Delete("/delete/{id}", h.deleteReference(KindDosageForm))
	})
	r.Route("/groups", func(r chi.Router) {
		r.Post("/group-create", h.createReference(KindGroup, "group_title"))
		r.Get("/", h.listReferences(KindGroup))
		r.Delete("/delete/{id}", h.deleteReference(KindGroup))
	})
	r.Route("/companies", func(r chi.Router) {
		r.Post("/company-create", h.createReference(KindCompany, "company_name"))
		r.Get("/", h.listReferences(KindCompany))
		r.Delete("/delete/{id}", h.deleteReference(KindCompany))
	})
	r.Route("/medicines", func(r chi.Router) {
		r.Post("/medicine-create", h.createMedicine)
		r.Get("/", h.listMedicines)
		r.Get("/get-medicine/{id}", h.getMedicine)
		r.Delete("/delete/{id}", h.deleteMedicine)
	})
}

func (h *Handler) createReference(kind Kind, field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := auth.SubjectFromContext(r.Context())
		if !ok {
			h.fail(w, r, shared.ErrUnauthorized)
			return
		}
		var body map[string]any
		if err := httpx.DecodeJSON(r, &body); err != nil {
			h.fail(w, r, fmt.Errorf("%w: malformed request body", shared.ErrInvalidInput))
			return
		}
		name, _ := body[field].(string)
		if _, err := h.service.CreateReference(r.Context(), subject.PharmacyID, kind, name); err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Created Successfully"})
	}
}

func (h *Handler) listReferences(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := auth.SubjectFromContext(r.Context())
		if !ok {
			h.fail(w, r, shared.ErrUnauthorized)
			return
		}
		q := r.URL.Query()
		list, err := h.service.ListReferences(r.Context(), subject.PharmacyID, kind, ListFilters{
			Search: q.Get("search"),
			Page:   shared.ParsePage(q.Get("page"), q.Get("limit"), 0),
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, httpx.Envelope{
			Success:    true,
			Message:    "Data retrieved successfully",
			Data:       list.Items,
			DataFound:  httpx.Count(list.Total),
			Pagination: list.Pagination,
		})
	}
}

func (h *Handler) getReference(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := auth.SubjectFromContext(r.Context())
		if !ok {
			h.fail(w, r, shared.ErrUnauthorized)
			return
		}
		ref, err := h.service.GetReference(r.Context(), subject.PharmacyID, kind, parseID(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.OK(w, "Data retrieved successfully", ref)
	}
}

func (h *Handler) deleteReference(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.DeleteReference(r.Context(), kind, parseID(r)); err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.OK(w, "Deleted successfully", nil)
	}
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.fail(w, r, shared.ErrUnauthorized)
		return
	}
	var input MedicineInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed request body", shared.ErrInvalidInput))
		return
	}
	if _, err := h.service.CreateMedicine(r.Context(), subject.PharmacyID, input); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Medicine created successfully", nil)
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.fail(w, r, shared.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	list, err := h.service.ListMedicines(r.Context(), subject.PharmacyID, MedicineFilters{
		Search:    q.Get("search"),
		Page:      shared.ParsePage(q.Get("page"), q.Get("limit"), 0),
		SortPrice: q.Get("sortPrice"),
		StockLeft: q.Get("stockLeft"),
		Company:   q.Get("company"),
		Group:     q.Get("group"),
		Category:  q.Get("category"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{
		Success:            true,
		Message:            "Data retrieved successfully",
		Data:               list.Items,
		DataFound:          httpx.Count(list.Total),
		Pagination:         list.Pagination,
		TotalPurchaseValue: &list.Totals.Purchase,
		TotalSalesValue:    &list.Totals.Sales,
	})
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.fail(w, r, shared.ErrUnauthorized)
		return
	}
	med, err := h.service.GetMedicine(r.Context(), subject.PharmacyID, parseID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Medicine retrieved successfully", med)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMedicine(r.Context(), parseID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Deleted successfully", nil)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("catalog request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// parseID returns 0 for malformed ids; the service reports those as not found.
func parseID(r *http.Request) int64 {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
