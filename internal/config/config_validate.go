// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/tomtom215/portcullis/internal/logging"
	"github.com/tomtom215/portcullis/internal/session"
	"github.com/tomtom215/portcullis/internal/validation"
)

// Rate limit bounds
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks struct tags first, then the rules that span fields.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSession(); err != nil {
		return err
	}

	if err := c.validateResources(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates CORS and rate limiting.
func (c *Config) validateServer() error {
	// Wildcard CORS on a server that proxies login would let any origin
	// drive a session.
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("PORTCULLIS_CORS_ORIGINS=* is not allowed in production; list the console origins explicitly")
	}

	if c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitReqs < minRateLimitRequests || c.Server.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("PORTCULLIS_RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("PORTCULLIS_RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	return slices.Contains(c.Server.CORSOrigins, "*")
}

// ShouldWarnAboutCORS reports a wildcard CORS setup worth logging at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// validateSession rejects an in-memory badger store in production, where a
// restart would silently sign every console user out.
func (c *Config) validateSession() error {
	if c.Session.StoreType() == session.StoreBadger && c.Session.Path == "" && c.IsProduction() {
		return fmt.Errorf("PORTCULLIS_SESSION_STORE_PATH is required for the badger store in production")
	}
	return nil
}

// validateResources builds the registry once so duplicate names and
// resources without a base path fail at startup.
func (c *Config) validateResources() error {
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("resources: %w", err)
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("PORTCULLIS_LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("PORTCULLIS_LOG_FORMAT must be one of: json, console")
	}
	return nil
}
