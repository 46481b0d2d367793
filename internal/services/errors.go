package services

import (
	"errors"
	"strings"

	"github.com/carelink/shift-portal/pkg/validator"
)

// Sentinel errors returned by the portal services. Handlers map them to HTTP statuses.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnsigned           = errors.New("timesheet has not been signed")
)

// ValidationError lists every request field that failed validation
type ValidationError struct {
	Fields []validator.FieldError
}

// Error implements error
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// newValidationError wraps a single field failure
func newValidationError(field, rule, message string) *ValidationError {
	return &ValidationError{Fields: []validator.FieldError{{Field: field, Rule: rule, Message: message}}}
}

// validate runs v over req and returns a *ValidationError on failure
func validate(v *validator.FieldValidator, req interface{}) error {
	if fields := v.Struct(req); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
