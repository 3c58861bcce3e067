// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package services

import (
	"context"
	"errors"
	"sync"

	"github.com/tomtom215/portcullis/internal/logging"
)

// CloseFunc releases one resource.
type CloseFunc func() error

// ShutdownService holds resources that live as long as the process, such as
// the token store and the access controller, and releases them when the
// supervisor stops. Close functions run once, in reverse registration order.
type ShutdownService struct {
	name string

	mu      sync.Mutex
	closers []namedCloser
	closed  bool
	after   []<-chan struct{}
}

type namedCloser struct {
	name string
	fn   CloseFunc
}

// NewShutdownService creates an empty ShutdownService.
func NewShutdownService() *ShutdownService {
	return &ShutdownService{name: "shutdown-hooks"}
}

// Add registers fn under name.
func (s *ShutdownService) Add(name string, fn CloseFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, namedCloser{name: name, fn: fn})
}

// After delays closing until ch is closed. Use it with
// HTTPServerService.Stopped so resources outlive in-flight requests.
func (s *ShutdownService) After(ch <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after = append(s.after, ch)
}

// Serve implements suture.Service. It waits for ctx and every After
// channel, then closes.
func (s *ShutdownService) Serve(ctx context.Context) error {
	<-ctx.Done()

	s.mu.Lock()
	after := s.after
	s.mu.Unlock()
	for _, ch := range after {
		<-ch
	}

	if err := s.Close(); err != nil {
		return err
	}
	return ctx.Err()
}

// Close runs every registered function once. Later calls are no-ops.
func (s *ShutdownService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.fn(); err != nil {
			logging.Error().Err(err).Str("resource", c.name).Msg("Failed to close resource")
			errs = append(errs, err)
			continue
		}
		logging.Debug().Str("resource", c.name).Msg("Closed resource")
	}
	return errors.Join(errs...)
}

// String names the service in supervisor events.
func (s *ShutdownService) String() string {
	return s.name
}
