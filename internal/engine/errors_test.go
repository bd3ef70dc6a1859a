package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveError_Message(t *testing.T) {
	cause := errors.New("database is locked")
	err := newStorageError("order-1", cause)

	assert.Equal(t, "STORAGE: resolution rolled back (order=order-1): database is locked", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "INVALID_ORDER: order id is required", newInvalidOrderError("", "order id is required").Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(newStorageError("o", errors.New("x"))))
	assert.True(t, IsRetryable(newPublishError("o", errors.New("x"))))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", newStorageError("o", nil))))
	assert.False(t, IsRetryable(newInvalidOrderError("o", "bad")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsInvalidOrder(t *testing.T) {
	assert.True(t, IsInvalidOrder(fmt.Errorf("wrapped: %w", newInvalidOrderError("o", "bad"))))
	assert.False(t, IsInvalidOrder(newStorageError("o", nil)))
}
