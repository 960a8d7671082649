// Copyright 2025 Chainframe

package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEndpoints is returned when a Pool is constructed with no endpoints.
var ErrNoEndpoints = errors.New("rpc: pool has no configured endpoints")

// AllProvidersFailedError aggregates the per-endpoint errors observed while
// trying every configured endpoint for a single call.
type AllProvidersFailedError struct {
	Attempts []EndpointError
}

// EndpointError records the failure of a single endpoint during a call.
type EndpointError struct {
	URL string
	Err error
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.URL, a.Err))
	}
	return fmt.Sprintf("rpc: all providers failed: %s", strings.Join(parts, "; "))
}

// Unwrap exposes the last attempt's error for errors.Is/As chains.
func (e *AllProvidersFailedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// IsAllProvidersFailed reports whether err is (or wraps) AllProvidersFailedError.
func IsAllProvidersFailed(err error) bool {
	var target *AllProvidersFailedError
	return errors.As(err, &target)
}
