package validator

import (
	"errors"
	"fmt"
)

// ErrInvalidEndpoint is returned when the validator URL cannot be used.
var ErrInvalidEndpoint = errors.New("invalid validator endpoint: expected an absolute http(s) URL")

// RequestError is returned when the validator answers with a non-2xx status.
//
// StatusCode tells a rate limit (429) from a server failure (5xx).
type RequestError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Status is the HTTP status line text, e.g. "500 Internal Server Error".
	Status string
}

// Error implements error.
func (e *RequestError) Error() string {
	return fmt.Sprintf("validator request failed: %s", e.Status)
}

// ParseError is returned when the validator response is not the expected JSON.
type ParseError struct {
	// Err is the underlying decoding error.
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse validator response: %v", e.Err)
}

// Unwrap returns the decoding error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
