package ladder

import (
	"errors"
	"fmt"
)

// Error kinds used across the stores and services. Callers wrap these with
// fmt.Errorf("%w: ...") to carry the user-facing detail; the HTTP boundary
// maps them to status codes with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	// ErrIntegrity marks a violated ledger invariant, e.g. a revert finding
	// no stored rating delta. Never retryable, never defaulted away.
	ErrIntegrity = errors.New("integrity error")
)

// ValidationError rejects malformed or inconsistent input before anything
// is persisted, with field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
