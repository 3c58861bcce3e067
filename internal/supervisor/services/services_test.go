// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package services

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*ShutdownService)(nil)
)

// fakeServer blocks in ListenAndServe until Shutdown, unless listenErr is set.
type fakeServer struct {
	listenErr   error
	shutdownErr error

	started   chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	shutdowns atomic.Int32
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.stopOnce.Do(func() { close(f.stop) })
	return f.shutdownErr
}

// =====================================================
// HTTPServerService
// =====================================================

func TestHTTPServerService_DefaultTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		if svc := NewHTTPServerService(newFakeServer(), timeout); svc.shutdownTimeout != DefaultShutdownTimeout {
			t.Errorf("NewHTTPServerService(%v) timeout = %v, want default", timeout, svc.shutdownTimeout)
		}
	}
	if got := NewHTTPServerService(newFakeServer(), time.Second).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	server := newFakeServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case <-server.started:
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("Shutdown calls = %d, want 1", server.shutdowns.Load())
	}
}

func TestHTTPServerService_Errors(t *testing.T) {
	t.Run("listen failure", func(t *testing.T) {
		bindErr := errors.New("bind: address already in use")
		server := newFakeServer()
		server.listenErr = bindErr

		if err := NewHTTPServerService(server, time.Second).Serve(context.Background()); !errors.Is(err, bindErr) {
			t.Errorf("Serve() error = %v, want %v", err, bindErr)
		}
	})

	t.Run("shutdown failure", func(t *testing.T) {
		shutdownErr := errors.New("connections still open")
		server := newFakeServer()
		server.shutdownErr = shutdownErr
		svc := NewHTTPServerService(server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		<-server.started
		cancel()

		if err := <-errCh; !errors.Is(err, shutdownErr) {
			t.Errorf("Serve() error = %v, want %v", err, shutdownErr)
		}
	})
}

// =====================================================
// ShutdownService
// =====================================================

func TestShutdownService_ClosesInReverseOnce(t *testing.T) {
	svc := NewShutdownService()
	var order []string
	svc.Add("store", func() error { order = append(order, "store"); return nil })
	svc.Add("controller", func() error { order = append(order, "controller"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if want := []string{"controller", "store"}; !slices.Equal(order, want) {
		t.Errorf("close order = %q, want %q", order, want)
	}
}

func TestShutdownService_JoinsErrors(t *testing.T) {
	svc := NewShutdownService()
	errA, errB := errors.New("a"), errors.New("b")
	ran := 0
	svc.Add("a", func() error { ran++; return errA })
	svc.Add("ok", func() error { ran++; return nil })
	svc.Add("b", func() error { ran++; return errB })

	err := svc.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() error = %v, want both failures", err)
	}
	if ran != 3 {
		t.Errorf("ran %d closers, want 3", ran)
	}
}

func TestShutdownService_WaitsForHTTPDrain(t *testing.T) {
	server := newFakeServer()
	httpSvc := NewHTTPServerService(server, time.Second)

	var closed atomic.Bool
	shutdown := NewShutdownService()
	shutdown.Add("store", func() error { closed.Store(true); return nil })
	shutdown.After(httpSvc.Stopped())

	ctx, cancel := context.WithCancel(context.Background())
	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- shutdown.Serve(ctx) }()
	cancel()

	select {
	case <-shutdownDone:
		t.Fatal("resources closed before the HTTP server stopped")
	case <-time.After(50 * time.Millisecond):
	}
	if closed.Load() {
		t.Fatal("store closed early")
	}

	// The HTTP service sees the same cancellation and drains.
	httpDone := make(chan error, 1)
	go func() { httpDone <- httpSvc.Serve(ctx) }()
	<-httpDone

	select {
	case <-shutdownDone:
	case <-time.After(time.Second):
		t.Fatal("shutdown service did not finish after drain")
	}
	if !closed.Load() {
		t.Error("store not closed")
	}
}
