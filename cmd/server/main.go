// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/portcullis/internal/access"
	"github.com/tomtom215/portcullis/internal/api"
	"github.com/tomtom215/portcullis/internal/config"
	"github.com/tomtom215/portcullis/internal/gateway"
	"github.com/tomtom215/portcullis/internal/identity"
	"github.com/tomtom215/portcullis/internal/logging"
	"github.com/tomtom215/portcullis/internal/metrics"
	"github.com/tomtom215/portcullis/internal/session"
	"github.com/tomtom215/portcullis/internal/supervisor"
	"github.com/tomtom215/portcullis/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("gateway", cfg.Gateway.BaseURL).
		Str("backend", cfg.Access.Backend).
		Str("session_store", cfg.Session.Store).
		Int("resources", len(cfg.Resources)).
		Msg("Starting Portcullis")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows every origin; set PORTCULLIS_CORS_ORIGINS before exposing the API")
	}

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Portcullis stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	shutdown := services.NewShutdownService()
	// Covers early returns and services the tree failed to stop.
	defer func() { _ = shutdown.Close() }()

	tokens, closeStore, err := session.Open(cfg.Session.StoreType(), cfg.Session.Path, cfg.Session.Namespace)
	if err != nil {
		return err
	}
	shutdown.Add("session-store", closeStore)

	gw := gateway.New(cfg.Gateway, tokens, nil)
	identities := identity.NewCache(gw, session.NewChecker(tokens), cfg.Identity.TTL)

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	ctrl, err := access.New(cfg.Access, registry, identities)
	if err != nil {
		return err
	}
	shutdown.Add("access-controller", func() error { ctrl.Close(); return nil })
	gw.OnForcedLogout(ctrl.OnForcedLogout)

	router := api.NewRouter(api.Config{
		Version:           version,
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitReqs:     cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		RateLimitDisabled: cfg.Server.RateLimitDisabled,
	}, ctrl, gw, registry)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	httpService := services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout)
	shutdown.After(httpService.Stopped())

	tree := supervisor.NewTree(logging.NewSlogLogger(), cfg.Supervisor)
	tree.AddCoreService(shutdown)
	tree.AddAPIService(httpService)
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree")
	err = tree.Serve(ctx)

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
