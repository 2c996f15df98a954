package httpx

import (
	"errors"
	"net/http"

	"github.com/medistock/medistock/internal/shared"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to envelope responses. Details of persistence
// failures stay in the logs.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	switch {
	case errors.Is(err, shared.ErrSettlementFailed):
		message = "Failed to update stock. Invoice creation rolled back."
	case status == http.StatusInternalServerError:
		message = "Something went wrong. Try again"
	}
	Fail(w, status, message)
}
