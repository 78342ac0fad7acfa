package types

import (
	"errors"
	"fmt"
)

// Lookup and lifecycle errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrClosed        = errors.New("store is closed")
)

// ErrValidation is matched by every *ValidationError, so callers can tell bad
// input apart from ErrNotFound with a single errors.Is check.
var ErrValidation = errors.New("validation failed")

// Field validation errors, always wrapped in a *ValidationError.
var (
	ErrInvalidName        = errors.New("name must not be empty")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidStatus      = errors.New("invalid status value")
	ErrInvalidPrice       = errors.New("price must not be negative")
	ErrInvalidDate        = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidColor       = errors.New("color must be a hex value like #5c5f66")
	ErrInvalidReference   = errors.New("referenced entity does not exist")
	ErrInvalidParent      = errors.New("category cannot be its own ancestor")
	ErrInvalidCustomField = errors.New("custom field values must be strings, numbers or booleans")
	ErrInvalidNotify      = errors.New("notify-before days must not be negative")
	ErrInvalidSetting     = errors.New("invalid setting value")
	ErrInvalidPage        = errors.New("page and page size must be at least 1")
)

// ErrProtectedCategory is returned when deleting a built-in category while
// system category protection is enabled.
var ErrProtectedCategory = errors.New("built-in categories cannot be deleted")

// ValidationError reports which input field was rejected and why.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

// Unwrap exposes both ErrValidation and the field-specific sentinel.
func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Invalid builds a *ValidationError for callers outside this package that
// detect invalid input (for example a dangling foreign key).
func Invalid(field string, err error) error {
	return invalid(field, err)
}
