// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by queue operations addressing an entry that is
// no longer in storage.
var ErrNotFound = errors.New("syncqueue: queue entry not found")

// TransportError wraps a failure where the request never produced a server
// response: network unreachable, DNS failure, timeout before any reply.
// These reflect environment state, not the operation's validity.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError is a 401/403-equivalent response. No amount of retrying without
// fresh credentials will succeed.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failure (status %d): %s", e.StatusCode, e.Message)
}

// ValidationError is a non-auth 4xx response: the server understood the
// request and rejected its content. Waiting will not fix it.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failure (status %d): %s", e.StatusCode, e.Message)
}

// ServerError is a 5xx-equivalent response, expected to be transient.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server failure (status %d): %s", e.StatusCode, e.Message)
}
