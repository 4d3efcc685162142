// Package apperrors defines the error taxonomy shared by every core
// component and the translation into HTTP status codes at the API
// façade boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the taxonomy bucket an error belongs to.
type Code string

const (
	CodeValidation Code = "validation"
	CodeState      Code = "state"
	CodeConflict   Code = "conflict"
	CodeAuthz      Code = "authz"
	CodeSignature  Code = "signature"
	CodeNotFound   Code = "not_found"
	CodeTelephony  Code = "telephony"
	CodeInternal   Code = "internal"
)

var statusByCode = map[Code]int{
	CodeValidation: http.StatusBadRequest,
	CodeState:      http.StatusBadRequest,
	CodeConflict:   http.StatusBadRequest,
	CodeAuthz:      http.StatusUnauthorized,
	CodeSignature:  http.StatusForbidden,
	CodeNotFound:   http.StatusNotFound,
	CodeTelephony:  http.StatusBadGateway,
	CodeInternal:   http.StatusInternalServerError,
}

// AppError is the concrete error type produced by core operations.
type AppError struct {
	Code      Code
	Message   string
	Err       error
	Retryable bool
	Context   map[string]any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus returns the status code the API façade should respond with.
func (e *AppError) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithContext attaches debugging context and returns the same error.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New constructs an AppError of the given code.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap constructs an AppError wrapping an underlying cause.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// Common, reusable sentinel-style constructors used across the core.

func InvalidLeadTransition(state, action string) *AppError {
	return New(CodeState, fmt.Sprintf("invalid lead transition: action %q from state %q", action, state)).
		WithContext("state", state).WithContext("action", action)
}

func RetryLimitReached(leadID string) *AppError {
	return New(CodeState, fmt.Sprintf("retry limit reached for lead %s", leadID)).WithContext("lead_id", leadID)
}

func InvalidCampaignState(state, action string) *AppError {
	return New(CodeState, fmt.Sprintf("invalid campaign transition: action %q from state %q", action, state)).
		WithContext("state", state).WithContext("action", action)
}

func DuplicatePhone(phone string) *AppError {
	return New(CodeConflict, fmt.Sprintf("phone number %s already exists in this campaign", phone)).
		WithContext("phone", phone)
}

func InvalidPhone(phone string) *AppError {
	return New(CodeValidation, fmt.Sprintf("invalid E.164 phone number: %s", phone)).WithContext("phone", phone)
}

func NotFound(resource string, id any) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s %v not found", resource, id)).WithContext("id", id)
}

func Unauthorized(reason string) *AppError {
	return New(CodeAuthz, reason)
}

func Forbidden(reason string) *AppError {
	return New(CodeSignature, reason)
}

func Internal(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}
