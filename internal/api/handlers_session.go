// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/portcullis/internal/gateway"
	"github.com/tomtom215/portcullis/internal/logging"
)

// Login signs in to the gateway. The token stays in the session store and
// is never returned.
func (router *Router) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var creds gateway.Credentials
	if !decodeJSON(rw, &creds) {
		return
	}

	if _, err := router.sessions.Login(r.Context(), creds); err != nil {
		gatewayError(rw, "login", err)
		return
	}

	router.checker.OnLogin()
	rw.NoContent()
}

// Refresh rotates the access token.
func (router *Router) Refresh(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if _, err := router.sessions.Refresh(r.Context()); err != nil {
		gatewayError(rw, "refresh", err)
		return
	}

	router.checker.OnTokenRefresh()
	rw.NoContent()
}

// Logout ends the gateway session. The local token is gone even when the
// gateway call fails, so caches are always invalidated.
func (router *Router) Logout(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	err := router.sessions.Logout(r.Context())
	router.checker.OnLogout()
	if err != nil {
		gatewayError(rw, "logout", err)
		return
	}
	rw.NoContent()
}

// gatewayError maps gateway failures to HTTP errors.
func gatewayError(rw *ResponseWriter, op string, err error) {
	logging.Ctx(rw.r.Context()).Warn().Err(err).Str("operation", op).Msg("Gateway session call failed")

	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, op+" rejected by gateway")
	case errors.Is(err, gateway.ErrCircuitOpen):
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "gateway unavailable")
	default:
		rw.Error(http.StatusBadGateway, ErrCodeGatewayFailed, op+" failed: "+err.Error())
	}
}
