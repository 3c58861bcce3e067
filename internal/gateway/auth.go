// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/portcullis/internal/logging"
	"github.com/tomtom215/portcullis/internal/metrics"
)

// Credentials are posted to the login endpoint.
type Credentials struct {
	Username     string `json:"username" validate:"required"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captchaToken,omitempty"`
}

// tokenResponse accepts the field names gateways commonly use.
type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	Snake       string `json:"access_token"`
}

func (t tokenResponse) value() string {
	switch {
	case t.AccessToken != "":
		return t.AccessToken
	case t.Snake != "":
		return t.Snake
	default:
		return t.Token
	}
}

// Login exchanges credentials for an access token and stores it.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, c.cfg.Paths.Login, creds, "")
	if err != nil {
		return "", err
	}
	if resp.status == http.StatusUnauthorized {
		return "", fmt.Errorf("%w: login rejected", ErrUnauthorized)
	}

	var tr tokenResponse
	if err := c.decode(http.MethodPost, c.cfg.Paths.Login, resp, &tr); err != nil {
		return "", err
	}
	token := tr.value()
	if token == "" {
		return "", ErrNoTokenInResponse
	}
	if err := c.tokens.Set(ctx, token); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}

	logging.Ctx(ctx).Info().Str("username", creds.Username).Msg("Logged in to gateway")
	return token, nil
}

// Refresh obtains a new access token with the refresh cookie and stores it.
// Concurrent callers share one refresh.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (interface{}, error) {
		return c.refreshToken(ctx)
	})
	if err != nil {
		return "", err
	}
	token, _ := v.(string)
	return token, nil
}

// refreshAfter returns a token to replay a request that was rejected while
// using stale. If another caller already rotated the token it is reused.
func (c *Client) refreshAfter(ctx context.Context, stale string) (string, error) {
	if current, err := c.tokens.Get(ctx); err == nil && current != stale {
		return current, nil
	}
	return c.Refresh(ctx)
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	path := c.cfg.Paths.Refresh
	resp, err := c.send(ctx, http.MethodPost, path, nil, "")
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", err
	}
	if resp.status == http.StatusUnauthorized {
		metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("%w: refresh rejected", ErrUnauthorized)
	}

	var tr tokenResponse
	if err := c.decode(http.MethodPost, path, resp, &tr); err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", err
	}
	token := tr.value()
	if token == "" {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", ErrNoTokenInResponse
	}
	if err := c.tokens.Set(ctx, token); err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("store access token: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	logging.Ctx(ctx).Debug().Msg("Access token refreshed")
	return token, nil
}

// Logout ends the session on the gateway and deletes the local token.
// The local token is deleted even when the gateway call fails.
func (c *Client) Logout(ctx context.Context) error {
	token, _ := c.tokens.Get(ctx)

	var callErr error
	resp, err := c.send(ctx, http.MethodPost, c.cfg.Paths.Logout, nil, token)
	switch {
	case err != nil:
		callErr = err
	case resp.status == http.StatusUnauthorized:
		// Already logged out on the gateway side.
	default:
		callErr = c.decode(http.MethodPost, c.cfg.Paths.Logout, resp, nil)
	}

	if err := c.tokens.Delete(ctx); err != nil {
		return errors.Join(callErr, fmt.Errorf("delete access token: %w", err))
	}
	return callErr
}

func (c *Client) forceLogout(ctx context.Context, cause error) {
	metrics.ForcedLogouts.Inc()
	logging.Ctx(ctx).Warn().Err(cause).Msg("Session rejected by gateway, forcing logout")

	if err := c.tokens.Delete(ctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to delete access token")
	}

	c.hookMu.RLock()
	hook := c.onForcedLogout
	c.hookMu.RUnlock()
	if hook != nil {
		hook(ctx)
	}
}
