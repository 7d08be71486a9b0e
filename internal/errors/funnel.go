package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a funnel failure into the categories the HTTP layer renders.
type Kind string

const (
	KindNone                Kind = ""
	KindValidation          Kind = "validation"
	KindPolicy              Kind = "policy_rejection"
	KindDuplicateLead       Kind = "duplicate_lead"
	KindService             Kind = "service_error"
	KindMissingPrerequisite Kind = "missing_prerequisite"
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal"
)

// Messages surfaced to students.
const (
	MessageAccessDenied = "Access Denied: Please use your official Richfield student email."
	MessageLeadExists   = "A roadmap already exists for this student! Redirecting to the secure login."
	MessageServiceError = "The AI Architect encountered a server error."
	MessageGeneric      = "An error occurred saving your profile. Please check your internet connection."
)

var (
	// ErrLeadExists reports that a lead with the same email is already stored.
	ErrLeadExists = errors.New("lead already exists")
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized reports a missing, expired or revoked session.
	ErrUnauthorized = errors.New("unauthorized")
)

// PolicyError is returned when input violates an admission policy such as the email gate.
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string {
	if e.Message == "" {
		return "policy rejection"
	}
	return e.Message
}

// NewPolicyError builds a PolicyError with the given user-facing message.
func NewPolicyError(message string) *PolicyError {
	return &PolicyError{Message: message}
}

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ServiceError covers every failed exchange with an external service: transport failure,
// non-2xx status, oversized or unparseable body, or a body that fails schema validation.
type ServiceError struct {
	Service    string
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	target := e.Service
	if e.Endpoint != "" {
		target = fmt.Sprintf("%s %s", e.Service, e.Endpoint)
	}
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("%s: status %d: %v", target, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", target, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status %d", target, e.StatusCode)
	default:
		return fmt.Sprintf("%s: service error", target)
	}
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// MissingPrerequisiteError reports that a view was opened without the state it needs.
// It is rendered as a silent redirect, never as a message.
type MissingPrerequisiteError struct {
	Missing  string
	Redirect string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("missing prerequisite %q", e.Missing)
}

// NewMissingPrerequisite builds a MissingPrerequisiteError redirecting to the landing page.
func NewMissingPrerequisite(missing string) *MissingPrerequisiteError {
	return &MissingPrerequisiteError{Missing: missing, Redirect: "/"}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var policyErr *PolicyError
	var validationErr *ValidationError
	var serviceErr *ServiceError
	var missingErr *MissingPrerequisiteError

	switch {
	case errors.As(err, &policyErr):
		return KindPolicy
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.Is(err, ErrLeadExists):
		return KindDuplicateLead
	case errors.As(err, &missingErr):
		return KindMissingPrerequisite
	case errors.As(err, &serviceErr):
		return KindService
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// RedirectFor returns the navigation target implied by err, if any.
func RedirectFor(err error) string {
	var missingErr *MissingPrerequisiteError
	if errors.As(err, &missingErr) {
		return missingErr.Redirect
	}
	if errors.Is(err, ErrLeadExists) {
		return "/login"
	}
	return ""
}
