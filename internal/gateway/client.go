// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

// Package gateway is the HTTP client for the backend that owns users,
// sessions and permissions.
//
// Every request carries the stored access token as a bearer token. When the
// gateway answers 401 the client performs one shared refresh; requests that
// hit 401 concurrently wait for it and replay with the new token. If the
// refresh fails the token is deleted and the forced-logout hook runs.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/portcullis/internal/logging"
	"github.com/tomtom215/portcullis/internal/metrics"
	"github.com/tomtom215/portcullis/internal/session"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Paths are the gateway endpoints, relative to BaseURL.
type Paths struct {
	Me          string `koanf:"me" validate:"required"`
	Permissions string `koanf:"permissions" validate:"required"`
	Login       string `koanf:"login" validate:"required"`
	Refresh     string `koanf:"refresh" validate:"required"`
	Logout      string `koanf:"logout" validate:"required"`
}

// Config configures the gateway client.
type Config struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`

	// RateLimit is the sustained outgoing request rate per second; 0 disables it.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
	Burst     int     `koanf:"burst" validate:"min=0"`

	// Envelope unwraps responses shaped as {"code": .., "data": ..}.
	Envelope bool `koanf:"envelope"`

	Paths   Paths         `koanf:"paths"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// DefaultConfig returns the default endpoint layout.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8080",
		Timeout:   10 * time.Second,
		RateLimit: 20,
		Burst:     40,
		Paths: Paths{
			Me:          "/auth/me",
			Permissions: "/auth/permissions",
			Login:       "/auth/login",
			Refresh:     "/auth/refresh",
			Logout:      "/auth/logout",
		},
		Breaker: DefaultBreakerConfig(),
	}
}

// Client talks to the gateway. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     session.TokenStore
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*response]
	refreshes  singleflight.Group

	hookMu         sync.RWMutex
	onForcedLogout func(ctx context.Context)
}

// response is a fully read gateway response.
type response struct {
	status int
	body   []byte
}

// New creates a client. httpClient may be nil.
func New(cfg Config, tokens session.TokenStore, httpClient *http.Client) *Client {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil) // never fails without options
		httpClient = &http.Client{Timeout: cfg.Timeout, Jar: jar}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		tokens:     tokens,
		limiter:    limiter,
		breaker:    newBreaker(cfg.Breaker),
	}
}

// OnForcedLogout registers fn to run after a failed refresh ended the session.
func (c *Client) OnForcedLogout(fn func(ctx context.Context)) {
	c.hookMu.Lock()
	c.onForcedLogout = fn
	c.hookMu.Unlock()
}

// do sends a request with the stored token and decodes the result into out.
// A 401 triggers the shared refresh and a single replay.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	token, _ := c.tokens.Get(ctx)

	resp, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized {
		fresh, err := c.refreshAfter(ctx, token)
		if err != nil {
			c.forceLogout(ctx, err)
			return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
		}
		if resp, err = c.send(ctx, method, path, body, fresh); err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			c.forceLogout(ctx, errors.New("replay rejected"))
			return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
		}
	}

	return c.decode(method, path, resp, out)
}

// send performs one request through the rate limiter and circuit breaker.
// Only transport errors and 5xx/429 responses are returned as errors.
func (c *Client) send(ctx context.Context, method, path string, body interface{}, token string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway rate limit wait: %w", err)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", path, err)
		}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, method, path, payload, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, token string) (*response, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest(path, 0, time.Since(start))
		return nil, fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	metrics.RecordGatewayRequest(path, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	resp := &response{status: httpResp.StatusCode, body: data}
	if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
		return resp, statusError(method, path, resp)
	}
	return resp, nil
}

func (c *Client) decode(method, path string, resp *response, out interface{}) error {
	if resp.status < 200 || resp.status > 299 {
		return statusError(method, path, resp)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}

	data := resp.body
	if c.cfg.Envelope {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("decode %s envelope: %w", path, err)
		}
		data = env.Data
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func statusError(method, path string, resp *response) *StatusError {
	body := strings.TrimSpace(string(resp.body))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Method: method, Path: path, Code: resp.status, Body: body}
}
