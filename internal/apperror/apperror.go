package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrAllocation  = errors.New("allocation failed")
	ErrPersistence = errors.New("persistence failed")
	ErrHashing     = errors.New("hashing failed")

	// ErrConflict is a constraint violation reported by the store, so it is
	// also a persistence failure: errors.Is(ErrConflict, ErrPersistence) holds.
	ErrConflict = fmt.Errorf("conflict: %w", ErrPersistence)
)

type AppError struct {
	Err     error  // sentinel error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error from a collaborator
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on the given field.
func Conflict(resource, field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict on %s", resource, field),
		Field:   field,
	}
}

// AllocationFailed is returned when an identifier or referral code cannot be produced.
func AllocationFailed(what string, cause error) *AppError {
	return &AppError{
		Err:     ErrAllocation,
		Message: fmt.Sprintf("unable to allocate %s", what),
		Cause:   cause,
	}
}

// PersistenceFailed wraps a store write failure with a caller-facing message.
func PersistenceFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: message,
		Cause:   cause,
	}
}

// HashingFailed wraps a failure of the password hashing collaborator.
func HashingFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrHashing,
		Message: "unable to hash credentials",
		Cause:   cause,
	}
}
