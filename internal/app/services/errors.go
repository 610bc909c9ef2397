// Package services holds the error vocabulary shared by the domain services.
// The HTTP layer maps these with errors.Is.
package services

import (
	"errors"
	"fmt"

	"github.com/gestly/gestly/internal/app/storage"
)

var (
	ErrNotFound        = storage.ErrNotFound
	ErrConflict        = storage.ErrConflict
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrPlanLimit       = errors.New("plan limit reached")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Invalid wraps ErrInvalidInput with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound reports a missing or foreign record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
