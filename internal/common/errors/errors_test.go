// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCode(t *testing.T) {
	err := NewNoVendorsAvailableError("roofing")

	assert.True(t, IsCode(err, ErrCodeNoVendorsAvailable))
	assert.False(t, IsCode(err, ErrCodeTransitionConflict))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeNoVendorsAvailable))
	assert.False(t, IsCode(nil, ErrCodeNoVendorsAvailable))

	// unwrapping through fmt.Errorf
	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, IsCode(wrapped, ErrCodeNoVendorsAvailable))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNoVendorsAvailableError("roofing")))
	assert.True(t, IsRetryable(NewPersistenceFailureError("op", errors.New("down"))))
	assert.False(t, IsRetryable(NewTransitionConflictError("h1", "accepted", "assigned")))
	assert.False(t, IsRetryable(NewInvalidRequestContextError("bad")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestTransitionConflictError_Detail(t *testing.T) {
	err := NewTransitionConflictError("h1", "accepted", "assigned")

	assert.Contains(t, err.Error(), "LEDGER_TRANSITION_CONFLICT")
	assert.Contains(t, err.Error(), "current=accepted")
	assert.Contains(t, err.Error(), "target=assigned")
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "request", GetErrorCategory(ErrCodeNoVendorsAvailable))
	assert.Equal(t, "ledger", GetErrorCategory(ErrCodeTransitionConflict))
	assert.Equal(t, "notification", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "persistence", GetErrorCategory(ErrCodePersistenceFailure))
	assert.Equal(t, "internal", GetErrorCategory(ErrCodeInternal))
}
