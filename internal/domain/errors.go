package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeDuplicateRequest  = "DUPLICATE_REQUEST"
	ErrCodeAlreadyDeployed   = "ALREADY_DEPLOYED"
	ErrCodeUnknownTarget     = "UNKNOWN_TARGET"
	ErrCodeUnknownEventType  = "UNKNOWN_EVENT_TYPE"
)

// IsErrorCode reports whether err is a DomainError carrying the given code.
func IsErrorCode(err error, code string) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == code
}

func NewNotFoundError(id int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("integration request %d not found", id),
	}
}

func NewCorrelationNotFoundError(correlationID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("no integration request with correlation id %s", correlationID),
	}
}

func NewInvalidTransitionError(from, to Status) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewAlreadyDeployedError(id int64, status Status) *DomainError {
	return &DomainError{
		Code:    ErrCodeAlreadyDeployed,
		Message: fmt.Sprintf("request %d is already %s and cannot be re-deployed", id, status),
	}
}

func NewUnknownTargetError(target string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownTarget,
		Message: fmt.Sprintf("unknown target system %q", target),
	}
}

func NewUnknownEventTypeError(s string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownEventType,
		Message: fmt.Sprintf("unknown event type %q", s),
	}
}

// ValidationError carries the full rule-violation list back to the caller.
// The request stays in PENDING with ValidationResult populated.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// NewDuplicateRequestError flags a second non-terminal request carrying the
// same natural key. Never auto-resolved; requires operator decision.
func NewDuplicateRequestError(naturalKey string, existingID int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateRequest,
		Message: fmt.Sprintf("DUPLICATE: request %d already carries natural key %s and is not terminal", existingID, naturalKey),
	}
}

// DispatchError is the outcome classification of a failed downstream call.
// Retryable is set for network/timeout/5xx failures; the operator may
// re-deploy. Unset means the downstream rejected the payload.
type DispatchError struct {
	Target    string
	Retryable bool
	Err       error
}

func (e *DispatchError) Error() string {
	kind := "non-retryable"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("dispatch to %s failed (%s): %v", e.Target, kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ReconciliationError is a transient failure querying downstream status.
// The request stays in its current state; the next poll retries.
type ReconciliationError struct {
	Target string
	Err    error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation against %s failed: %v", e.Target, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
