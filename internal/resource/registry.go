// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package resource

import (
	"fmt"
	"maps"
	"sync"
)

// Registry holds the registered resource descriptors.
// Descriptors are copied on the way in and out, so callers cannot mutate
// a registered resource.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Descriptor
	order  []string
}

// NewRegistry registers every descriptor and fails on the first invalid one.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor)}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates d, derives its base paths and stores it.
func (r *Registry) Register(d Descriptor) error {
	d.CustomActions = maps.Clone(d.CustomActions)
	if err := d.normalize(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("%w: resource %q registered twice", ErrConfiguration, d.Name)
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	d.CustomActions = maps.Clone(d.CustomActions)
	return d, nil
}

// List returns every descriptor in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.byName[name]
		d.CustomActions = maps.Clone(d.CustomActions)
		out = append(out, d)
	}
	return out
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
