// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

// Package session persists the gateway access token between runs.
//
// Only one value is stored, under the fixed key "access_token". Identity and
// permission data are never written here; they are rebuilt from the gateway
// every session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenKey is the storage key of the access token.
const TokenKey = "access_token"

// ErrNoToken is returned by Get when no token is stored.
var ErrNoToken = errors.New("no access token stored")

// TokenStore holds the current access token.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// storedToken is the persisted representation of the token.
type storedToken struct {
	Token    string    `json:"token"`
	StoredAt time.Time `json:"stored_at"`
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored token or ErrNoToken.
func (m *MemoryStore) Get(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

// Set replaces the stored token. An empty token clears it.
func (m *MemoryStore) Set(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Delete clears the stored token.
func (m *MemoryStore) Delete(_ context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
