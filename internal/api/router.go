// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/portcullis/internal/access"
	"github.com/tomtom215/portcullis/internal/gateway"
	"github.com/tomtom215/portcullis/internal/metrics"
	"github.com/tomtom215/portcullis/internal/middleware"
	"github.com/tomtom215/portcullis/internal/resource"
)

// Checker is the access controller as the API uses it.
type Checker interface {
	Can(ctx context.Context, req access.Request) access.Decision
	CanAll(ctx context.Context, reqs []access.Request) []access.Decision
	ClearPermissionCache()
	ClearEnforcer()
	OnLogin()
	OnLogout()
	OnTokenRefresh()
	Stats() access.Stats
}

// Sessions signs the sidecar in and out of the gateway.
type Sessions interface {
	Login(ctx context.Context, creds gateway.Credentials) (string, error)
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// Resources lists the registered resources.
type Resources interface {
	List() []resource.Descriptor
}

// Config configures the router.
type Config struct {
	Version string

	CORSOrigins []string

	RateLimitReqs     int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// Login attempts allowed per client and window.
var (
	loginRateLimitReqs   = 5
	loginRateLimitWindow = time.Minute
)

// Router holds the handler dependencies.
type Router struct {
	cfg       Config
	checker   Checker
	sessions  Sessions
	resources Resources
	started   time.Time
}

// NewRouter creates a Router.
func NewRouter(cfg Config, checker Checker, sessions Sessions, resources Resources) *Router {
	return &Router{
		cfg:       cfg,
		checker:   checker,
		sessions:  sessions,
		resources: resources,
		started:   time.Now(),
	}
}

// Handler builds the chi route tree.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.cors()) // global so OPTIONS preflight is answered

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", router.HealthLive)
		r.Get("/ready", router.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.rateLimit("api", router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)

		r.Get("/can", router.Can)
		r.Post("/can", router.Can)
		r.Post("/can/batch", router.CanBatch)
		r.Get("/resources", router.Resources)
		r.Get("/stats", router.Stats)
		r.Post("/cache/clear", router.ClearCache)

		r.Route("/session", func(r chi.Router) {
			r.With(router.rateLimit("login", loginRateLimitReqs, loginRateLimitWindow)).
				Post("/login", router.Login)
			r.Post("/refresh", router.Refresh)
			r.Post("/logout", router.Logout)
		})
	})

	return r
}

func (router *Router) cors() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

// rateLimit limits requests per client IP. Rejections are counted under
// label.
func (router *Router) rateLimit(label string, reqs int, window time.Duration) func(http.Handler) http.Handler {
	if router.cfg.RateLimitDisabled || reqs <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(reqs, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(label).Inc()
			NewResponseWriter(w, r).Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded")
		}),
	)
}
