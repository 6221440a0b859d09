package domain

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks rejected input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks uniqueness or state conflicts.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized marks failed authentication.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError describes an invalid field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
