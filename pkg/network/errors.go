package network

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch failures.
// HTTP error statuses are not failures at this layer.
type ErrorClass string

const (
	// ErrorClassNetwork represents DNS, connection and transport errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents fetches that exceeded their deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassCancelled represents fetches whose context was cancelled.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// FetchError is a failure to obtain any response from the network.
type FetchError struct {
	URL        string
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.ErrorClass, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is (or wraps) a FetchError.
func IsNetworkError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}

// classifyError categorizes a transport error.
func classifyError(err error) ErrorClass {
	if errors.Is(err, context.Canceled) {
		return ErrorClassCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

// shouldRetry determines if a failure should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassNetwork, ErrorClassTimeout:
		return true
	default:
		// cancellation is the caller giving up
		return false
	}
}
