// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMissingCredential means no usable API key is configured for a
	// provider that requires one. Raised before any network attempt; a
	// request is never silently sent unauthenticated.
	ErrMissingCredential = errors.New("no API key configured")

	// ErrUnknownProvider means the provider ID is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
)

// RequestError is a network or HTTP failure surfaced while talking to a
// provider.
type RequestError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsRequestError reports whether err is a provider request failure.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}
