package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorKind classifies an API failure. Rate-limit conditions never surface as
// errors: they are absorbed by the governor and retried transparently.
type ErrorKind string

const (
	// KindNetwork is a transport-level failure (connection refused, timeout,
	// DNS) or a 5xx response, retried with exponential backoff.
	KindNetwork ErrorKind = "network"

	// KindPermissionDenied means the token lacks a required OAuth scope.
	// Never retried: permissions will not change mid-run.
	KindPermissionDenied ErrorKind = "permission_denied"

	// KindAPI is any other API-reported semantic failure (invalid channel,
	// bad query). Never retried.
	KindAPI ErrorKind = "api"
)

// APIError is a classified failure from a Slack Web API call.
type APIError struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("slack %s error (%s): %s: %v", e.Kind, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("slack %s error (%s): %s", e.Kind, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsPermissionDenied reports whether err is a missing-scope failure.
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindPermissionDenied
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNetwork
}
