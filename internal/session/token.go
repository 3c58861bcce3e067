// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Valid reports whether token may still be presented to the gateway.
//
// The signature is not checked; the gateway does that. A JWT is valid until
// its exp claim, and a JWT without exp never expires. Opaque tokens are
// valid while present.
func Valid(token string, now time.Time) bool {
	if token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return now.Before(exp.Time)
}

// Subject returns the sub claim of a JWT, or "" for opaque tokens.
func Subject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// Checker answers whether the store currently holds a usable token.
type Checker struct {
	store TokenStore
	now   func() time.Time
}

// NewChecker creates a Checker over store.
func NewChecker(store TokenStore) *Checker {
	return &Checker{store: store, now: time.Now}
}

// HasValidToken reports whether a non-expired token is stored.
func (c *Checker) HasValidToken(ctx context.Context) bool {
	token, err := c.store.Get(ctx)
	if err != nil {
		return false
	}
	return Valid(token, c.now())
}
