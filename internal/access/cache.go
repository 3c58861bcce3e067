// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package access

import (
	"sync"
	"time"

	"github.com/tomtom215/portcullis/internal/metrics"
)

// decisionCache caches decisions per key within a generation.
type decisionCache struct {
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	gen      uint64
	items    map[Key]*cacheItem
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	decision  Decision
	expiresAt time.Time
}

// newDecisionCache creates a cache and starts its cleanup goroutine.
func newDecisionCache(ttl time.Duration) *decisionCache {
	if ttl <= 0 {
		ttl = DefaultDecisionTTL
	}
	c := &decisionCache{
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[Key]*cacheItem),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// generation returns the current generation.
func (c *decisionCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// get retrieves a live decision.
func (c *decisionCache) get(key Key) (Decision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		return Decision{}, false
	}
	return item.decision, true
}

// set stores a decision computed under gen. Decisions from an older
// generation are dropped and set reports false.
func (c *decisionCache) set(key Key, gen uint64, d Decision) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return false
	}
	c.items[key] = &cacheItem{decision: d, expiresAt: c.now().Add(c.ttl)}
	metrics.DecisionCacheSize.Set(float64(len(c.items)))
	return true
}

// clear removes all decisions and starts a new generation.
func (c *decisionCache) clear() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items = make(map[Key]*cacheItem)
	metrics.DecisionCacheSize.Set(0)
	return c.gen
}

// size returns the number of stored decisions, expired ones included.
func (c *decisionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// cleanup periodically removes expired items.
func (c *decisionCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *decisionCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			evicted++
		}
	}
	metrics.DecisionCacheEvictions.Add(float64(evicted))
	metrics.DecisionCacheSize.Set(float64(len(c.items)))
	return evicted
}

// stop stops the cleanup goroutine.
// It is safe to call multiple times (idempotent).
func (c *decisionCache) stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
