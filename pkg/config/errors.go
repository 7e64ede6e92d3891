package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration validation.
var (
	// ErrMissingRequiredField indicates a required field is empty.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidValue indicates a field value is out of range.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownProvider indicates a model binding names a provider the
	// gateway does not implement.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ValidationError provides context about which component and field failed
// validation.
type ValidationError struct {
	Component string // e.g., "llm", "ingest", "tournament"
	ID        string // binding or subsystem name
	Field     string // field that failed
	Err       error  // underlying error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s '%s': field '%s': %v", e.Component, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s '%s': %v", e.Component, e.ID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error with context.
func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{
		Component: component,
		ID:        id,
		Field:     field,
		Err:       err,
	}
}
