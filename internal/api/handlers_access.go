// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package api

import (
	"net/http"

	"github.com/tomtom215/portcullis/internal/access"
	"github.com/tomtom215/portcullis/internal/logging"
	"github.com/tomtom215/portcullis/internal/validation"
)

// CheckResult is the answer to one check.
type CheckResult struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	ID       string `json:"id,omitempty"`
	Can      bool   `json:"can"`
	Reason   string `json:"reason,omitempty"`
}

func checkResult(req access.Request, d access.Decision) CheckResult {
	return CheckResult{
		Resource: req.Resource,
		Action:   req.Action,
		ID:       req.Params.ID,
		Can:      d.Allowed,
		Reason:   d.Reason,
	}
}

// BatchRequest holds up to 100 checks.
type BatchRequest struct {
	Checks []access.Request `json:"checks" validate:"required,min=1,max=100,dive"`
}

// BatchResponse answers a BatchRequest in request order.
type BatchResponse struct {
	Results []CheckResult `json:"results"`
}

type clearRequest struct {
	Scope string `validate:"omitempty,oneof=all enforcer"`
}

// Can answers one check. GET takes resource, action and id from the query;
// any other query parameter is passed as a template value. POST takes an
// access.Request body.
func (router *Router) Can(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req access.Request
	if r.Method == http.MethodGet {
		req = requestFromQuery(r)
		if err := validation.ValidateStruct(&req); err != nil {
			rw.ValidationFailed(err)
			return
		}
	} else if !decodeJSON(rw, &req) {
		return
	}

	d := router.checker.Can(r.Context(), req)
	rw.Success(checkResult(req, d))
}

func requestFromQuery(r *http.Request) access.Request {
	q := r.URL.Query()
	req := access.Request{
		Resource: q.Get("resource"),
		Action:   q.Get("action"),
		Params:   access.Params{ID: q.Get("id")},
	}
	for key, values := range q {
		switch key {
		case "resource", "action", "id":
			continue
		}
		if len(values) == 0 {
			continue
		}
		if req.Params.Extra == nil {
			req.Params.Extra = make(map[string]string)
		}
		req.Params.Extra[key] = values[0]
	}
	return req
}

// CanBatch answers every check of a BatchRequest.
func (router *Router) CanBatch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var batch BatchRequest
	if !decodeJSON(rw, &batch) {
		return
	}

	decisions := router.checker.CanAll(r.Context(), batch.Checks)
	results := make([]CheckResult, len(batch.Checks))
	for i, req := range batch.Checks {
		results[i] = checkResult(req, decisions[i])
	}
	rw.Success(BatchResponse{Results: results})
}

// Resources lists the registered resource descriptors.
func (router *Router) Resources(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(router.resources.List())
}

// Stats reports the controller state.
func (router *Router) Stats(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(router.checker.Stats())
}

// ClearCache drops cached decisions. scope=enforcer keeps the cached
// identity and only rebuilds the enforcer; the default also refetches the
// identity and permissions.
func (router *Router) ClearCache(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := clearRequest{Scope: r.URL.Query().Get("scope")}
	if err := validation.ValidateStruct(&req); err != nil {
		rw.ValidationFailed(err)
		return
	}

	if req.Scope == "enforcer" {
		router.checker.ClearEnforcer()
	} else {
		router.checker.ClearPermissionCache()
	}

	logging.Ctx(r.Context()).Info().Str("scope", req.Scope).Msg("Access caches cleared via API")
	rw.NoContent()
}
