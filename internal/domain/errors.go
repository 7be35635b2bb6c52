package domain

import (
	"github.com/pkg/errors"
)

// Error taxonomy shared by the store, the session manager and the api layer.
// Callers wrap these with errors.Wrap and classify with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotConnected       = errors.New("whatsapp not connected")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrStorage            = errors.New("storage error")
	// ErrConflict is reserved for optimistic concurrency checks.
	ErrConflict = errors.New("conflict")
)
