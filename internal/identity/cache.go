// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

// Package identity caches the current user's identity and permission lines.
//
// Both values are fetched lazily, kept for a TTL, and shared between
// concurrent callers through one in-flight fetch per kind. Invalidate drops
// both at once and advances a generation counter; a fetch that started
// under an older generation still answers its callers but is not stored.
package identity

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/portcullis/internal/logging"
	"github.com/tomtom215/portcullis/internal/metrics"
)

// DefaultTTL is how long a fetched identity or permission list is reused.
const DefaultTTL = 5 * time.Minute

// ErrUnstable is returned by Snapshot when invalidations keep racing it.
var ErrUnstable = errors.New("identity changed while reading snapshot")

// Identity is the authenticated user as reported by the gateway.
type Identity struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	NickName string   `json:"nickName,omitempty"`
	Avatar   string   `json:"avatar,omitempty"`
	Roles    []string `json:"roles"`
}

// Source fetches fresh data from the gateway.
type Source interface {
	FetchIdentity(ctx context.Context) (*Identity, error)
	FetchPermissions(ctx context.Context) ([]string, error)
}

// TokenChecker reports whether a usable session token exists.
type TokenChecker interface {
	HasValidToken(ctx context.Context) bool
}

// Snapshot is a consistent read of both cached values.
type Snapshot struct {
	Identity    *Identity
	Permissions []string
	Generation  uint64
}

type entry[T any] struct {
	value   T
	expires time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	source Source
	tokens TokenChecker
	ttl    time.Duration
	now    func() time.Time

	mu          sync.Mutex
	generation  uint64
	identity    *entry[*Identity]
	permissions *entry[[]string]

	flights singleflight.Group
}

// NewCache creates a cache over source. A ttl of zero or less uses DefaultTTL.
func NewCache(source Source, tokens TokenChecker, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{source: source, tokens: tokens, ttl: ttl, now: time.Now}
}

// Identity returns the cached identity, fetching it when absent or stale.
// Without a valid token it returns nil without calling the source.
func (c *Cache) Identity(ctx context.Context) (*Identity, error) {
	if !c.tokens.HasValidToken(ctx) {
		return nil, nil
	}

	c.mu.Lock()
	if e := c.identity; e != nil && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.value, nil
	}
	gen := c.generation
	c.mu.Unlock()

	v, err, _ := c.flights.Do(flightKey("identity", gen), func() (interface{}, error) {
		id, err := c.source.FetchIdentity(ctx)
		metrics.RecordIdentityFetch("identity", err)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.identity = &entry[*Identity]{value: id, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("identity fetch failed")
		return nil, err
	}
	id, _ := v.(*Identity)
	return id, nil
}

// Permissions returns the cached permission lines, fetching them when absent
// or stale. Without a valid token it returns nil without calling the source.
func (c *Cache) Permissions(ctx context.Context) ([]string, error) {
	if !c.tokens.HasValidToken(ctx) {
		return nil, nil
	}

	c.mu.Lock()
	if e := c.permissions; e != nil && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.value, nil
	}
	gen := c.generation
	c.mu.Unlock()

	v, err, _ := c.flights.Do(flightKey("permissions", gen), func() (interface{}, error) {
		lines, err := c.source.FetchPermissions(ctx)
		metrics.RecordIdentityFetch("permissions", err)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.permissions = &entry[[]string]{value: lines, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return lines, nil
	})
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("permission fetch failed")
		return nil, err
	}
	lines, _ := v.([]string)
	return lines, nil
}

// Snapshot reads identity and permissions from the same generation.
func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	for range 3 {
		gen := c.Generation()

		id, err := c.Identity(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		lines, err := c.Permissions(ctx)
		if err != nil {
			return Snapshot{}, err
		}

		if c.Generation() == gen {
			return Snapshot{Identity: id, Permissions: lines, Generation: gen}, nil
		}
	}
	return Snapshot{}, ErrUnstable
}

// Invalidate drops both cached values and starts a new generation.
func (c *Cache) Invalidate(reason string) uint64 {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.identity = nil
	c.permissions = nil
	c.mu.Unlock()

	logging.Debug().Str("reason", reason).Uint64("generation", gen).Msg("identity cache invalidated")
	return gen
}

// Generation returns the current generation.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func flightKey(kind string, gen uint64) string {
	return kind + ":" + strconv.FormatUint(gen, 10)
}
