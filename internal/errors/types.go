package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// ErrorType classifies a failure for breaker accounting and metrics labels.
type ErrorType int

const (
	// ErrorTypeTransient covers failures caused by the dependency being unhealthy.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent covers failures a repeat call would not fix.
	ErrorTypePermanent
	// ErrorTypeDegraded covers calls rejected locally, such as by an open breaker.
	ErrorTypeDegraded
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeDegraded:
		return "breaker_open"
	default:
		return "unknown"
	}
}

// TransientError marks an error caused by an unhealthy dependency.
type TransientError struct {
	Err        error
	StatusCode int
	Message    string // user-facing
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError marks an error a repeat call would not fix.
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string // user-facing
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "permanent error"
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// DegradedError is returned when a call was refused locally and a fallback may be shown instead.
type DegradedError struct {
	Err             error
	Message         string // user-facing
	FallbackContent string
}

func (e *DegradedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "degraded"
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err was caused by the dependency being unhealthy:
// network failures, timeouts, 5xx and 429 responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if code := StatusCodeOf(err); code > 0 {
		return isTransientHTTPStatus(code)
	}
	return isNetworkError(err) || isSyscallError(err)
}

// IsPermanent reports whether err would recur on a repeat call.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return true
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return false
	}
	if code := StatusCodeOf(err); code > 0 {
		return isPermanentHTTPStatus(code)
	}
	switch KindOf(err) {
	case KindPolicy, KindValidation, KindDuplicateLead, KindNotFound, KindUnauthorized, KindMissingPrerequisite:
		return true
	}
	return false
}

// IsDegraded reports whether err carries a DegradedError.
func IsDegraded(err error) bool {
	var degradedErr *DegradedError
	return errors.As(err, &degradedErr)
}

// GetErrorType classifies err.
func GetErrorType(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypePermanent
	case IsDegraded(err):
		return ErrorTypeDegraded
	case IsTransient(err):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// StatusCodeOf extracts the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.StatusCode > 0 {
		return serviceErr.StatusCode
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.StatusCode > 0 {
		return transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.StatusCode > 0 {
		return permanentErr.StatusCode
	}
	return 0
}

// UserMessage converts an error into the message shown to the student.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var policyErr *PolicyError
	if errors.As(err, &policyErr) {
		return policyErr.Error()
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	if errors.Is(err, ErrLeadExists) {
		return MessageLeadExists
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		if serviceErr.Message != "" {
			return serviceErr.Message
		}
		return MessageServiceError
	}

	var degradedErr *DegradedError
	if errors.As(err, &degradedErr) && degradedErr.Message != "" {
		return degradedErr.Message
	}

	return MessageGeneric
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isSyscallError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

func isTransientHTTPStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func isPermanentHTTPStatus(code int) bool {
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusTooManyRequests
}

// NewTransientError wraps err as transient.
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// NewPermanentError wraps err as permanent.
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// NewDegradedError wraps err as degraded with optional fallback content.
func NewDegradedError(err error, message, fallback string) *DegradedError {
	return &DegradedError{Err: err, Message: message, FallbackContent: fallback}
}
