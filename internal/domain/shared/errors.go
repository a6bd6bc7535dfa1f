package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers. Every failure returned by the
// fee engine carries exactly one kind.
type ErrorKind string

const (
	KindValidation     ErrorKind = "VALIDATION"
	KindConflict       ErrorKind = "CONFLICT"
	KindInvariant      ErrorKind = "INVARIANT_VIOLATION"
	KindNotFound       ErrorKind = "NOT_FOUND"
	KindPolicy         ErrorKind = "POLICY"
	KindInfrastructure ErrorKind = "INFRASTRUCTURE"
)

// String returns the string representation of the kind
func (k ErrorKind) String() string {
	return string(k)
}

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches another DomainError by code, so sentinel comparisons work
// after wrapping.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError creates a new domain error of the given kind
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports malformed input
func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

// NewConflictError reports a concurrent modification
func NewConflictError(code, message string) *DomainError {
	return NewDomainError(KindConflict, code, message)
}

// NewInvariantViolation reports a change that would break a balance or status invariant
func NewInvariantViolation(code, message string) *DomainError {
	return NewDomainError(KindInvariant, code, message)
}

// NewNotFoundError reports a missing resource in the caller's tenant
func NewNotFoundError(code, message string) *DomainError {
	return NewDomainError(KindNotFound, code, message)
}

// NewPolicyError reports an operation disallowed by a business rule
func NewPolicyError(code, message string) *DomainError {
	return NewDomainError(KindPolicy, code, message)
}

// Common domain errors
var (
	ErrNotFound            = NewNotFoundError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewValidationError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewConflictError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewPolicyError("INVALID_STATE", "Operation not allowed in current state")
	ErrTenantRequired      = NewValidationError("TENANT_REQUIRED", "A tenant must be supplied for this operation")
)

// InfrastructureError wraps a failure of the backing store or another
// dependency. It is never a domain outcome.
type InfrastructureError struct {
	Op  string
	Err error
}

// NewInfrastructureError wraps err as an infrastructure failure of op
func NewInfrastructureError(op string, err error) *InfrastructureError {
	return &InfrastructureError{Op: op, Err: err}
}

// Error implements the error interface
func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// ErrorKind always reports KindInfrastructure
func (e *InfrastructureError) ErrorKind() ErrorKind {
	return KindInfrastructure
}

// KindOf classifies err. Errors that are not domain errors are infrastructure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var kinded interface{ ErrorKind() ErrorKind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	var de *DomainError
	if errors.As(err, &de) {
		if de.Kind == "" {
			return KindValidation
		}
		return de.Kind
	}
	return KindInfrastructure
}

// CodeOf returns the stable error code of err
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var kinded interface{ ErrorCode() string }
	if errors.As(err, &kinded) {
		return kinded.ErrorCode()
	}
	return "INTERNAL_ERROR"
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
