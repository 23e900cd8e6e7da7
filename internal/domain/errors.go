package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches wrapped variants against their sentinel by code and message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithCause returns a copy of the error carrying an underlying cause.
// The copy still matches the original via errors.Is.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: err}
}

// Common domain error codes. Callers decide retry policy from the code:
// INVALID_ARGUMENT and NOT_FOUND are terminal, TIMEOUT and UNAVAILABLE are
// retryable with backoff, INTERNAL is surfaced and never swallowed.
const (
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeUnavailable     = "UNAVAILABLE"
	ErrCodeInternal        = "INTERNAL"
)

// Invalid argument errors
var (
	ErrMissingInstanceID = NewDomainError(ErrCodeInvalidArgument, "instance id is required")
	ErrEmptySourceFiles  = NewDomainError(ErrCodeInvalidArgument, "instance requires at least one source file")
	ErrDimensionMismatch = NewDomainError(ErrCodeInvalidArgument, "embedding dimension does not match configured dimension")
	ErrInvalidDIKWLevel  = NewDomainError(ErrCodeInvalidArgument, "invalid dikw level")
	ErrInvalidTopK       = NewDomainError(ErrCodeInvalidArgument, "top_k out of range")
	ErrInvalidLimit      = NewDomainError(ErrCodeInvalidArgument, "limit must be positive")
	ErrInvalidWeight     = NewDomainError(ErrCodeInvalidArgument, "reinforcement weight must be positive")
	ErrEmptyQueryVector  = NewDomainError(ErrCodeInvalidArgument, "query vector is required")
	ErrMissingUserID     = NewDomainError(ErrCodeInvalidArgument, "user id is required")
)

// Not found errors
var (
	ErrInstanceNotFound = NewDomainError(ErrCodeNotFound, "knowledge instance not found")
	ErrProfileNotFound  = NewDomainError(ErrCodeNotFound, "user interest profile not found")
)

// Operational errors
var (
	ErrDeadlineExceeded = NewDomainError(ErrCodeTimeout, "operation deadline exceeded")
	ErrCanceled         = NewDomainError(ErrCodeUnavailable, "operation canceled")
	ErrStoreUnavailable = NewDomainError(ErrCodeUnavailable, "embedding store unavailable")
	ErrIndexCorrupted   = NewDomainError(ErrCodeInternal, "index state corrupted")
)
