package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassTransport indicates a network-level failure talking to the API.
	// Examples: connection refused, timeouts, DNS failures, non-2xx HTTP statuses.
	// Transport errors are retried inside the RPC client.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassApplication indicates the remote API answered with an explicit error payload.
	// These are terminal for the call and never retried.
	ErrorClassApplication ErrorClass = "application"

	// ErrorClassPrecondition indicates a required pre-existing resource was not found.
	// This points at a broken provisioning order, not a transient condition.
	ErrorClassPrecondition ErrorClass = "precondition"

	// ErrorClassReadiness indicates a readiness phase did not succeed before its deadline.
	ErrorClassReadiness ErrorClass = "readiness"

	// ErrorClassValidation indicates invalid local input (catalog, settings, policy).
	ErrorClassValidation ErrorClass = "validation"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the natural key of the resource that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred,
	// usually the RPC method name.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)

	var scope []string
	if e.Resource != "" {
		scope = append(scope, "resource="+e.Resource)
	}
	if e.Operation != "" {
		scope = append(scope, "operation="+e.Operation)
	}
	if len(scope) > 0 {
		msg += " (" + strings.Join(scope, ", ") + ")"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransportError creates a new transport error.
func NewTransportError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransport,
		Message: message,
		Err:     err,
	}
}

// NewApplicationError creates a new application error.
func NewApplicationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassApplication,
		Message: message,
		Err:     err,
	}
}

// NewPreconditionError creates a new precondition error.
func NewPreconditionError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPrecondition,
		Message: message,
		Err:     err,
		Code:    ErrCodeNotFound,
	}
}

// NewReadinessError creates a new readiness-timeout error.
func NewReadinessError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassReadiness,
		Message: message,
		Err:     err,
		Code:    ErrCodeTimeout,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassValidation,
		Message: message,
		Err:     err,
		Code:    ErrCodeValidation,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func hasClass(err error, class ErrorClass) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsTransport returns true if the error is classified as a transport error.
func IsTransport(err error) bool {
	return hasClass(err, ErrorClassTransport)
}

// IsApplication returns true if the error is classified as an application error.
func IsApplication(err error) bool {
	return hasClass(err, ErrorClassApplication)
}

// IsPrecondition returns true if the error is classified as a precondition error.
func IsPrecondition(err error) bool {
	return hasClass(err, ErrorClassPrecondition)
}

// IsReadiness returns true if the error is classified as a readiness error.
func IsReadiness(err error) bool {
	return hasClass(err, ErrorClassReadiness)
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	return hasClass(err, ErrorClassValidation)
}

// IsRetryable returns true if the error can be retried.
// Only transport errors are retryable, and only until the retry budget is spent.
func IsRetryable(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransport && e.Code != ErrCodeRetriesExhausted
	}
	return false
}

// ClassOf returns the class of a classified error, or an empty class.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeRemote           = "REMOTE_ERROR"
	ErrCodeRetriesExhausted = "RETRIES_EXHAUSTED"
	ErrCodeBadResponse      = "BAD_RESPONSE"
	ErrCodePolicyDenied     = "POLICY_DENIED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)
