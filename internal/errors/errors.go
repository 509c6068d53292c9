package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of a pipeline failure.
type ErrorType string

const (
	// ErrorTypeInvalidGeometry marks a degenerate or out-of-bounds profile line.
	ErrorTypeInvalidGeometry ErrorType = "INVALID_GEOMETRY"
	// ErrorTypeInvalidParameters marks a filter, detector or fitter configuration
	// that violates its constraints.
	ErrorTypeInvalidParameters ErrorType = "INVALID_PARAMETERS"
	// ErrorTypeInvalidBoundary marks manual integration indices that violate
	// 0 <= left < apex < right < len.
	ErrorTypeInvalidBoundary ErrorType = "INVALID_BOUNDARY"
	// ErrorTypeFitNonConvergence marks a solver failure for a single peak.
	ErrorTypeFitNonConvergence ErrorType = "FIT_NON_CONVERGENCE"
	// ErrorTypeEmptyProfile marks a zero-length extraction result.
	ErrorTypeEmptyProfile ErrorType = "EMPTY_PROFILE"
	// ErrorTypeIO marks loader and export failures.
	ErrorTypeIO ErrorType = "IO"
)

// AppError represents a structured pipeline error.
type AppError struct {
	Type    ErrorType         `json:"type"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Cause   error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key/value pair and returns the same error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func newError(t ErrorType, format string, args ...interface{}) *AppError {
	return &AppError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidGeometry creates an INVALID_GEOMETRY error
func NewInvalidGeometry(format string, args ...interface{}) *AppError {
	return newError(ErrorTypeInvalidGeometry, format, args...)
}

// NewInvalidParameters creates an INVALID_PARAMETERS error
func NewInvalidParameters(format string, args ...interface{}) *AppError {
	return newError(ErrorTypeInvalidParameters, format, args...)
}

// NewInvalidBoundary creates an INVALID_BOUNDARY error
func NewInvalidBoundary(format string, args ...interface{}) *AppError {
	return newError(ErrorTypeInvalidBoundary, format, args...)
}

// NewFitNonConvergence creates a FIT_NON_CONVERGENCE error
func NewFitNonConvergence(format string, args ...interface{}) *AppError {
	return newError(ErrorTypeFitNonConvergence, format, args...)
}

// NewEmptyProfile creates an EMPTY_PROFILE error
func NewEmptyProfile(format string, args ...interface{}) *AppError {
	return newError(ErrorTypeEmptyProfile, format, args...)
}

// Wrap creates an error of the given type around cause.
func Wrap(t ErrorType, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, Cause: cause}
}

// IsType reports whether any error in err's chain is an AppError of the given type.
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
