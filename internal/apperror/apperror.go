// Package apperror defines the typed error taxonomy shared by the runtime
// service and its transports. Transports map errors by code, never by
// parsing messages.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeNotFound   Code = "NOT_FOUND"
	CodeConflict   Code = "CONFLICT"
	CodeValidation Code = "VALIDATION_ERROR"
	CodeBadRequest Code = "BAD_REQUEST"
	CodeInternal   Code = "INTERNAL_ERROR"
)

// Error is the application error type. Fields holds accumulated per-field
// validation messages when Code is CodeValidation.
type Error struct {
	HTTPStatus int               `json:"statusCode"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	Internal   error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Internal }

// WithInternal attaches a wrapped cause for logs; the cause is never
// serialized outward.
func (e *Error) WithInternal(err error) *Error {
	e.Internal = err
	return e
}

// FieldSummary renders the message plus per-field errors as a single display
// string, with fields in sorted order.
func (e *Error) FieldSummary() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// New creates an Error with an explicit status and code.
func New(status int, code Code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

// NewNotFound reports a missing resource.
func NewNotFound(resource, id string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found: %s", resource, id))
}

// NewConflict reports a uniqueness or duplicate-key violation.
func NewConflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

// NewValidation reports invalid input with optional per-field detail.
func NewValidation(message string, fields map[string]string) *Error {
	e := New(http.StatusUnprocessableEntity, CodeValidation, message)
	e.Fields = fields
	return e
}

// NewBadRequest reports a malformed request.
func NewBadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// NewInternal wraps an unexpected storage or infrastructure failure.
func NewInternal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, "internal error").WithInternal(err)
}

// As unwraps err into an *Error if possible.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	ae, ok := As(err)
	return ok && ae.Code == CodeNotFound
}

// IsValidation reports whether err is a Validation error.
func IsValidation(err error) bool {
	ae, ok := As(err)
	return ok && ae.Code == CodeValidation
}

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool {
	ae, ok := As(err)
	return ok && ae.Code == CodeConflict
}
