package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an engine error for retry and reporting decisions.
type Kind string

const (
	// KindValidation covers malformed rule sets, cyclic tree requests,
	// cross-catalogue merges. Never retried; aborts the offending
	// operation only.
	KindValidation Kind = "validation"
	// KindTransient covers store timeouts and connection drops. Retried
	// with bounded backoff at record/page granularity.
	KindTransient Kind = "transient"
	// KindInvariant covers invariant violations detected at commit time
	// despite pre-checks. Fatal to the current operation, logged loudly.
	KindInvariant Kind = "invariant"
	// KindNotFound covers missing catalogues, categories and panels.
	KindNotFound Kind = "not_found"
)

// AppError is the engine's error type: a kind for policy decisions, an HTTP
// status for the operator API and an inner error for logs.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"status_code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	Context string `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the inner error for errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code of the error.
func (e *AppError) StatusCode() int {
	return e.Code
}

// WithContext attaches context (function, parameters) for logs.
func (e *AppError) WithContext(context string) *AppError {
	e.Context = context
	return e
}

// NewValidationError creates a non-retryable validation error.
func NewValidationError(message string, err error) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

// NewTransientStoreError creates a retryable store error.
func NewTransientStoreError(message string, err error) *AppError {
	return &AppError{
		Kind:    KindTransient,
		Code:    http.StatusServiceUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewInvariantViolation creates an invariant-violation error. It indicates
// either a race or a bug in a prior stage, so callers log it loudly and
// abort the current operation.
func NewInvariantViolation(message string, err error) *AppError {
	return &AppError{
		Kind:    KindInvariant,
		Code:    http.StatusConflict,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    http.StatusNotFound,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the Kind of err, or "" for non-AppErrors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsRetryable reports whether the operation that produced err may be
// retried. Only transient store errors qualify.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// WrapError wraps err with a message, preserving kind and status when err
// is already an AppError.
func WrapError(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Kind:    appErr.Kind,
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
			Context: appErr.Context,
		}
	}

	return &AppError{
		Kind:    KindTransient,
		Code:    http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}
