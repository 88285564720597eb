// Package errors provides standardized error handling for the routing engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNoVendorsAvailable     ErrorCode = "NO_VENDORS_AVAILABLE"
	ErrCodeInvalidRequestContext  ErrorCode = "INVALID_REQUEST_CONTEXT"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTransitionConflict     ErrorCode = "LEDGER_TRANSITION_CONFLICT"
	ErrCodePersistenceFailure     ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeHandoffNotFound        ErrorCode = "HANDOFF_NOT_FOUND"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error type surfaced by the routing core. Retryable
// distinguishes transient conditions (persistence, delivery) from caller
// mistakes and state races.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ==========================
// 2. Constructors
// ==========================

// NewNoVendorsAvailableError signals an empty candidate set after filtering.
// Recoverable: the caller retries later or escalates manually.
func NewNoVendorsAvailableError(serviceType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoVendorsAvailable,
		Message:   "no active vendors available for recommendation",
		Details:   fmt.Sprintf("service_type=%s", serviceType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestContextError rejects a malformed scoring request at the
// boundary before it reaches the scoring engine.
func NewInvalidRequestContextError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequestContext,
		Message:   "invalid request context",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError wraps a gateway delivery failure. Logged
// and counted; it never aborts a sweep batch.
func NewNotificationSendFailedError(kind string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   fmt.Sprintf("failed to send %s notification", kind),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransitionConflictError signals an attempted transition from an
// incompatible state. Indicates a race between two actors, so it is always
// surfaced, never swallowed.
func NewTransitionConflictError(handoffID, current, target string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransitionConflict,
		Message:   "handoff state transition conflict",
		Details:   fmt.Sprintf("handoff=%s current=%s target=%s", handoffID, current, target),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceFailureError is fatal for the current operation; sweep runs
// abort cleanly without partial commits.
func NewPersistenceFailureError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailure,
		Message:   fmt.Sprintf("persistence failure during %s", operation),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewHandoffNotFoundError(handoffID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeHandoffNotFound,
		Message:   "handoff not found",
		Details:   fmt.Sprintf("handoff=%s", handoffID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification
// ==========================

// IsCode reports whether err is a StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// IsRetryable reports whether err represents a transient condition.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// GetErrorCategory groups codes for metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeNoVendorsAvailable, ErrCodeInvalidRequestContext:
		return "request"
	case ErrCodeTransitionConflict, ErrCodeHandoffNotFound:
		return "ledger"
	case ErrCodeNotificationSendFailed:
		return "notification"
	case ErrCodePersistenceFailure:
		return "persistence"
	default:
		return "internal"
	}
}
