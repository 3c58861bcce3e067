// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const tokenKeyPrefix = "token:"

// BadgerStore implements TokenStore on BadgerDB so the token survives
// restarts. Namespace separates several consoles sharing one database.
type BadgerStore struct {
	db  *badger.DB
	key []byte
}

// NewBadgerStore creates a token store on an open database.
func NewBadgerStore(db *badger.DB, namespace string) *BadgerStore {
	key := tokenKeyPrefix + TokenKey
	if namespace != "" {
		key = tokenKeyPrefix + namespace + ":" + TokenKey
	}
	return &BadgerStore{db: db, key: []byte(key)}
}

// Get returns the stored token or ErrNoToken.
func (s *BadgerStore) Get(_ context.Context) (string, error) {
	var stored storedToken

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoToken
		}
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return "", err
	}
	if stored.Token == "" {
		return "", ErrNoToken
	}
	return stored.Token, nil
}

// Set replaces the stored token. An empty token clears it.
func (s *BadgerStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Delete(ctx)
	}

	data, err := json.Marshal(storedToken{Token: token, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(s.key, data); err != nil {
			return fmt.Errorf("set token: %w", err)
		}
		return nil
	})
}

// Delete removes the stored token. Deleting a missing token is not an error.
func (s *BadgerStore) Delete(_ context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(s.key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete token: %w", err)
		}
		return nil
	})
}

// StoreType selects the token storage backend.
type StoreType string

const (
	// StoreMemory keeps the token in memory only (default).
	StoreMemory StoreType = "memory"

	// StoreBadger persists the token in BadgerDB.
	StoreBadger StoreType = "badger"
)

// Open creates the configured token store. The returned close function
// releases the database, if one was opened, and is never nil.
func Open(storeType StoreType, path, namespace string) (TokenStore, func() error, error) {
	switch storeType {
	case StoreMemory, "":
		return NewMemoryStore(), func() error { return nil }, nil
	case StoreBadger:
		opts := badger.DefaultOptions(path)
		if path == "" {
			opts = opts.WithInMemory(true)
		}
		opts.Logger = nil // Suppress BadgerDB logs

		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger db for tokens: %w", err)
		}
		return NewBadgerStore(db, namespace), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown token store type %q", storeType)
	}
}
