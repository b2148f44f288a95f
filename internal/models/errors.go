package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrTransient       = errors.New("store temporarily unavailable")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

var (
	ErrNoHouses        = fmt.Errorf("no houses exist: %w", ErrNotFound)
	ErrDuplicateEntry  = fmt.Errorf("score already recorded for this event and house: %w", ErrConflict)
	ErrDuplicateMatric = fmt.Errorf("matric number already registered: %w", ErrConflict)
	ErrAlreadyScanned  = fmt.Errorf("you have already scanned this QR code: %w", ErrConflict)
	ErrDuplicateEvent  = fmt.Errorf("event with this title already exists in this category: %w", ErrConflict)
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
