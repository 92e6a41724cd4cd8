// Package domain holds shared value types and error kinds for the
// entity-resolution layer.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed configuration or input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrMissingRequiredField signals a required similarity field with no
	// source value to build a query fragment from.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrUnknownType signals a canonical type that is neither built in nor
	// present in the dynamic registry. It is a kind of validation failure
	// and also matches ErrValidation.
	ErrUnknownType = fmt.Errorf("unknown canonical type: %w", ErrValidation)
)

// ValidationError names the offending content of a rejected configuration
// or input. It is never produced alongside a partially built object.
type ValidationError struct {
	Subject string // the offending attribute, field, or property
	Detail  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid creates a validation error for the given subject.
func Invalid(subject, format string, args ...any) error {
	return &ValidationError{Subject: subject, Detail: fmt.Sprintf(format, args...)}
}
