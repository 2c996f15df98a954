package shared

import "errors"

var (
	// ErrInvalidInput marks malformed, missing or out-of-range fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a duplicate natural key.
	ErrConflict = errors.New("already exists")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrPersistence wraps failures of the storage call itself.
	ErrPersistence = errors.New("persistence error")
	// ErrSettlementFailed indicates a partial stock update; the invoice was rolled back.
	ErrSettlementFailed = errors.New("failed to update stock. invoice creation rolled back")
)
