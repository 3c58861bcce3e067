// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/portcullis/internal/access"
)

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Uptime  string        `json:"uptime"`
	Access  *access.Stats `json:"access,omitempty"`
}

// HealthLive reports that the process serves requests.
func (router *Router) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(router.health(nil))
}

// HealthReady reports readiness with the controller state.
func (router *Router) HealthReady(w http.ResponseWriter, r *http.Request) {
	stats := router.checker.Stats()
	NewResponseWriter(w, r).Success(router.health(&stats))
}

func (router *Router) health(stats *access.Stats) HealthStatus {
	return HealthStatus{
		Status:  "ok",
		Version: router.cfg.Version,
		Uptime:  time.Since(router.started).Truncate(time.Second).String(),
		Access:  stats,
	}
}
