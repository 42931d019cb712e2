package storage

import (
	"errors"
	"fmt"
)

// ErrNotSupported is returned when a provider lacks a requested capability.
var ErrNotSupported = errors.New("operation not supported by provider")

// ErrObjectNotFound is returned when the provider has no object for the
// given external ID.
var ErrObjectNotFound = errors.New("object not found")

// ProviderError wraps a failure from a storage provider with enough
// context to log and classify it.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError for the given provider and operation.
func NewProviderError(provider, op string, statusCode int, body string, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: statusCode,
		Body:       body,
		Err:        err,
	}
}
