// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/portcullis/internal/access"
	"github.com/tomtom215/portcullis/internal/gateway"
	"github.com/tomtom215/portcullis/internal/resource"
	"github.com/tomtom215/portcullis/internal/session"
	"github.com/tomtom215/portcullis/internal/supervisor"
)

// Config holds the whole sidecar configuration.
type Config struct {
	Server     ServerConfig          `koanf:"server"`
	Gateway    gateway.Config        `koanf:"gateway"`
	Access     access.Config         `koanf:"access"`
	Identity   IdentityConfig        `koanf:"identity"`
	Session    SessionConfig         `koanf:"session"`
	Logging    LoggingConfig         `koanf:"logging"`
	Supervisor supervisor.TreeConfig `koanf:"supervisor"`
	Resources  []resource.Descriptor `koanf:"resources" validate:"dive"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
	Environment     string        `koanf:"environment" validate:"oneof=development production"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IdentityConfig configures the identity and permission cache.
type IdentityConfig struct {
	// TTL is how long the signed-in identity and its permissions are reused.
	TTL time.Duration `koanf:"ttl" validate:"min=0"`
}

// SessionConfig selects where the access token is kept.
type SessionConfig struct {
	// Store is "memory" or "badger".
	Store string `koanf:"store" validate:"oneof=memory badger"`

	// Path is the badger directory. Empty keeps badger in memory.
	Path string `koanf:"path"`

	// Namespace separates tokens of several consoles sharing one store.
	Namespace string `koanf:"namespace"`
}

// StoreType returns the session store type.
func (s SessionConfig) StoreType() session.StoreType {
	return session.StoreType(s.Store)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes file:line in every entry.
	Caller bool `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Registry builds the resource registry from the configured descriptors.
func (c *Config) Registry() (*resource.Registry, error) {
	return resource.NewRegistry(c.Resources...)
}
