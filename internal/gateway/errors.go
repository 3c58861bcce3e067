// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the gateway rejects the session and
	// a refresh could not recover it.
	ErrUnauthorized = errors.New("gateway: unauthorized")

	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("gateway: circuit open")

	// ErrNoTokenInResponse is returned when login or refresh succeeds
	// without carrying an access token.
	ErrNoTokenInResponse = errors.New("gateway: response carried no access token")
)

// StatusError is a non-2xx gateway response other than 401.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: %s %s returned status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("gateway: %s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying later.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == 429
}
