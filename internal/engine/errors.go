package engine

import (
	"errors"
	"fmt"
)

// ResolveError represents a failure to process an order.
//
// ResolveError includes structured fields for diagnostics and for deciding
// whether the storefront should retry the webhook.
type ResolveError struct {
	// Code identifies the error category.
	Code ResolveErrorCode

	// Message is a human-readable description.
	Message string

	// OrderID identifies the affected order, if known.
	OrderID string

	// Err is the underlying cause.
	Err error
}

// ResolveErrorCode categorizes resolution errors.
type ResolveErrorCode string

const (
	// ErrCodeInvalidOrder indicates the order itself is malformed.
	ErrCodeInvalidOrder ResolveErrorCode = "INVALID_ORDER"

	// ErrCodeStorage indicates the resolution transaction failed and was
	// rolled back. Nothing was recorded.
	ErrCodeStorage ResolveErrorCode = "STORAGE"

	// ErrCodePublish indicates the resolution committed but its activity
	// events could not be appended. They remain in the outbox.
	ErrCodePublish ResolveErrorCode = "PUBLISH"
)

// Error implements the error interface.
func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.OrderID != "" {
		msg = fmt.Sprintf("%s (order=%s)", msg, e.OrderID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether redelivering the order may succeed.
// Uses errors.As to handle wrapped errors.
func IsRetryable(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStorage || re.Code == ErrCodePublish
	}
	return false
}

// IsInvalidOrder reports whether the order was rejected as malformed.
// Uses errors.As to handle wrapped errors.
func IsInvalidOrder(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidOrder
	}
	return false
}

func newInvalidOrderError(orderID, message string) *ResolveError {
	return &ResolveError{Code: ErrCodeInvalidOrder, Message: message, OrderID: orderID}
}

func newStorageError(orderID string, err error) *ResolveError {
	return &ResolveError{Code: ErrCodeStorage, Message: "resolution rolled back", OrderID: orderID, Err: err}
}

func newPublishError(orderID string, err error) *ResolveError {
	return &ResolveError{Code: ErrCodePublish, Message: "activity events left in outbox", OrderID: orderID, Err: err}
}
