package domain

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrRequestFailed is a non-2xx answer from the finance API.
type ErrRequestFailed struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *ErrRequestFailed) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
}

// IsUnauthorized reports whether the API rejected the credential.
func (e *ErrRequestFailed) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsUnauthorized reports whether err carries an API 401 or a missing local
// credential. Both end the session.
func IsUnauthorized(err error) bool {
	var failed *ErrRequestFailed
	if errors.As(err, &failed) && failed.IsUnauthorized() {
		return true
	}
	var unauthorized *ErrUnauthorized
	return errors.As(err, &unauthorized)
}

// ErrUnauthorized indicates there is no usable credential.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrValidation carries field-level messages for malformed input.
// It is produced before anything is sent to the network.
type ErrValidation struct {
	Fields map[string]string
}

// NewValidation builds a validation error for a single field.
func NewValidation(field, message string) *ErrValidation {
	return &ErrValidation{Fields: map[string]string{field: message}}
}

// Add records a message for field, keeping the first one.
func (e *ErrValidation) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// OrNil returns e when it holds at least one message.
func (e *ErrValidation) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ErrValidation) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("'%s': %s", k, e.Fields[k]))
	}
	return "validation error on " + strings.Join(parts, ", ")
}
