// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

// Package metrics registers the Prometheus metrics exported on /metrics.
//
// Metrics are grouped by the component that records them:
//   - access: decisions, decision cache, single-flight, enforcer rebuilds
//   - identity: identity and permission fetches
//   - gateway: outgoing requests, token refresh, circuit breaker
//   - api: inbound HTTP requests
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portcullis"

var (
	// Access Decision Metrics

	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of access decisions",
		},
		[]string{"resource", "action", "decision"},
	)

	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Duration of access decisions in seconds",
			// Cache hits are microseconds; misses include a gateway round trip.
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
		},
		[]string{"cache"},
	)

	DecisionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_cache_hits_total",
			Help:      "Total number of decision cache hits",
		},
	)

	DecisionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_cache_misses_total",
			Help:      "Total number of decision cache misses",
		},
	)

	DecisionCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "decision_cache_size",
			Help:      "Current number of cached decisions",
		},
	)

	DecisionCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_cache_evictions_total",
			Help:      "Total number of expired decisions removed by cleanup",
		},
	)

	SingleFlightShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_singleflight_shared_total",
			Help:      "Total number of checks answered by another caller's in-flight evaluation",
		},
	)

	EnforcerRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enforcer_rebuilds_total",
			Help:      "Total number of enforcer rebuilds after a permission change",
		},
		[]string{"backend"},
	)

	EnforcerPolicies = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "enforcer_rules",
			Help:      "Number of rules loaded into the current enforcer",
		},
		[]string{"kind"}, // policy, grouping
	)

	InvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Total number of permission cache invalidations",
		},
		[]string{"reason"},
	)

	EvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Total number of checks denied because evaluation failed",
		},
		[]string{"type"},
	)

	// Identity Cache Metrics

	IdentityFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_fetches_total",
			Help:      "Total number of identity and permission fetches from the gateway",
		},
		[]string{"kind", "result"},
	)

	// Gateway Metrics

	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of requests sent to the gateway",
		},
		[]string{"endpoint", "status_code"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Gateway request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Total number of access token refresh attempts",
		},
		[]string{"result"},
	)

	ForcedLogouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_logouts_total",
			Help:      "Total number of sessions ended because a refresh failed",
		},
	)

	// Circuit Breaker Metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Endpoint Metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_hits_total",
			Help:      "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// System Metrics

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_info",
			Help:      "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDecision records one answered check.
func RecordDecision(resource, action string, allowed, cacheHit bool, duration time.Duration) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	DecisionsTotal.WithLabelValues(resource, action, decision).Inc()

	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	DecisionDuration.WithLabelValues(cache).Observe(duration.Seconds())
}

// RecordIdentityFetch records a gateway fetch of kind "identity" or "permissions".
func RecordIdentityFetch(kind string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	IdentityFetches.WithLabelValues(kind, result).Inc()
}

// RecordGatewayRequest records a completed gateway round trip.
// A status code of 0 means the request never got a response.
func RecordGatewayRequest(endpoint string, statusCode int, duration time.Duration) {
	GatewayRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	GatewayRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
