package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"session-service/internal/calcom"
	"session-service/internal/lms"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoSlots         = errors.New("at least one slot is required")
)

// ValidationError reports rejected input, keyed by field name.
type ValidationError struct {
	FieldErrors map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{FieldErrors: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.FieldErrors[field]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindRemoteProvider Kind = "remote_provider"
	KindUnexpected     Kind = "unexpected"
)

func ErrorKind(err error) Kind {
	var validationErr *ValidationError
	var calErr *calcom.APIError
	var lmsErr *lms.APIError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoSlots), errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &calErr), errors.As(err, &lmsErr):
		return KindRemoteProvider
	default:
		return KindUnexpected
	}
}

// RemoteStatus returns the HTTP status carried by a provider error, or 0.
func RemoteStatus(err error) int {
	var calErr *calcom.APIError
	if errors.As(err, &calErr) {
		return calErr.StatusCode
	}
	var lmsErr *lms.APIError
	if errors.As(err, &lmsErr) {
		return lmsErr.StatusCode
	}
	return 0
}

// RemoteMessage returns the provider's message for a provider error.
func RemoteMessage(err error) string {
	var calErr *calcom.APIError
	if errors.As(err, &calErr) {
		return calErr.Message
	}
	var lmsErr *lms.APIError
	if errors.As(err, &lmsErr) {
		return lmsErr.Message
	}
	return ""
}
