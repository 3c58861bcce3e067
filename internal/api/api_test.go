// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portcullis/internal/access"
	"github.com/tomtom215/portcullis/internal/gateway"
	"github.com/tomtom215/portcullis/internal/middleware"
	"github.com/tomtom215/portcullis/internal/resource"
)

// fakeChecker allows "list" on every resource and records hook calls.
type fakeChecker struct {
	mu       sync.Mutex
	requests []access.Request
	hooks    []string
}

func (f *fakeChecker) decide(req access.Request) access.Decision {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if req.Action == "list" {
		return access.Decision{Allowed: true}
	}
	return access.Decision{Reason: fmt.Sprintf("no role grants %s %s", req.Action, req.Resource)}
}

func (f *fakeChecker) Can(_ context.Context, req access.Request) access.Decision {
	return f.decide(req)
}

func (f *fakeChecker) CanAll(_ context.Context, reqs []access.Request) []access.Decision {
	out := make([]access.Decision, len(reqs))
	for i, r := range reqs {
		out[i] = f.decide(r)
	}
	return out
}

func (f *fakeChecker) hook(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, name)
}

func (f *fakeChecker) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hooks...)
}

func (f *fakeChecker) ClearPermissionCache() { f.hook("clear") }
func (f *fakeChecker) ClearEnforcer()        { f.hook("clear_enforcer") }
func (f *fakeChecker) OnLogin()              { f.hook("login") }
func (f *fakeChecker) OnLogout()             { f.hook("logout") }
func (f *fakeChecker) OnTokenRefresh()       { f.hook("refresh") }

func (f *fakeChecker) Stats() access.Stats {
	return access.Stats{CachedDecisions: 3, Generation: 2, Backend: "native"}
}

type fakeSessions struct {
	loginErr   error
	refreshErr error
	logoutErr  error
	creds      gateway.Credentials
}

func (f *fakeSessions) Login(_ context.Context, creds gateway.Credentials) (string, error) {
	f.creds = creds
	return "token", f.loginErr
}

func (f *fakeSessions) Refresh(context.Context) (string, error) { return "token", f.refreshErr }
func (f *fakeSessions) Logout(context.Context) error            { return f.logoutErr }

type fakeResources []resource.Descriptor

func (f fakeResources) List() []resource.Descriptor { return f }

// envelope mirrors APIResponse with Data left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func newTestRouter(cfg Config) (*fakeChecker, *fakeSessions, http.Handler) {
	checker := &fakeChecker{}
	sessions := &fakeSessions{}
	resources := fakeResources{{Name: "posts", APIBase: "/posts"}}
	return checker, sessions, NewRouter(cfg, checker, sessions, resources).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func TestCan_Query(t *testing.T) {
	checker, _, h := newTestRouter(Config{})

	rec, env := do(t, h, http.MethodGet, "/api/v1/can?resource=posts&action=list", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, env.Success)
	}
	var res CheckResult
	decodeData(t, env, &res)
	if !res.Can || res.Resource != "posts" || res.Action != "list" {
		t.Errorf("result = %+v, want posts list allowed", res)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/can?resource=posts&action=approve&id=7&stage=draft", "")
	decodeData(t, env, &res)
	if res.Can || res.Reason == "" || res.ID != "7" {
		t.Errorf("result = %+v, want deny with reason for id 7", res)
	}

	last := checker.requests[len(checker.requests)-1]
	if last.Params.ID != "7" || last.Params.Extra["stage"] != "draft" {
		t.Errorf("params = %+v, want id 7 and stage=draft", last.Params)
	}
	if _, ok := last.Params.Extra["resource"]; ok {
		t.Error("resource leaked into extra params")
	}
}

func TestCan_Body(t *testing.T) {
	checker, _, h := newTestRouter(Config{})

	body := `{"resource":"posts","action":"edit","params":{"id":"9","extra":{"slug":"hello"}}}`
	rec, env := do(t, h, http.MethodPost, "/api/v1/can", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res CheckResult
	decodeData(t, env, &res)
	if res.Can {
		t.Error("edit allowed, want deny")
	}
	if got := checker.requests[0].Params.Extra["slug"]; got != "hello" {
		t.Errorf("extra slug = %q, want hello", got)
	}
}

func TestCan_Invalid(t *testing.T) {
	_, _, h := newTestRouter(Config{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   string
	}{
		{"missing action", http.MethodGet, "/api/v1/can?resource=posts", "", ErrCodeValidationFailed},
		{"missing resource body", http.MethodPost, "/api/v1/can", `{"action":"list"}`, ErrCodeValidationFailed},
		{"malformed body", http.MethodPost, "/api/v1/can", `{"resource":`, ErrCodeBadRequest},
		{"empty batch", http.MethodPost, "/api/v1/can/batch", `{"checks":[]}`, ErrCodeValidationFailed},
		{"invalid batch item", http.MethodPost, "/api/v1/can/batch", `{"checks":[{"resource":"posts"}]}`, ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.target, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestCanBatch_PreservesOrder(t *testing.T) {
	_, _, h := newTestRouter(Config{})

	body := `{"checks":[
		{"resource":"posts","action":"list"},
		{"resource":"posts","action":"delete","params":{"id":"1"}},
		{"resource":"users","action":"list"}
	]}`
	rec, env := do(t, h, http.MethodPost, "/api/v1/can/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var res BatchResponse
	decodeData(t, env, &res)
	want := []bool{true, false, true}
	if len(res.Results) != len(want) {
		t.Fatalf("results = %d, want %d", len(res.Results), len(want))
	}
	for i, r := range res.Results {
		if r.Can != want[i] {
			t.Errorf("results[%d] = %+v, want can=%v", i, r, want[i])
		}
	}
	if res.Results[2].Resource != "users" {
		t.Errorf("results[2].resource = %q, want users", res.Results[2].Resource)
	}
}

func TestClearCache(t *testing.T) {
	tests := []struct {
		target string
		status int
		hook   string
	}{
		{"/api/v1/cache/clear", http.StatusNoContent, "clear"},
		{"/api/v1/cache/clear?scope=all", http.StatusNoContent, "clear"},
		{"/api/v1/cache/clear?scope=enforcer", http.StatusNoContent, "clear_enforcer"},
		{"/api/v1/cache/clear?scope=everything", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			checker, _, h := newTestRouter(Config{})
			rec, _ := do(t, h, http.MethodPost, tt.target, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			hooks := checker.called()
			if tt.hook == "" {
				if len(hooks) != 0 {
					t.Errorf("hooks = %v, want none", hooks)
				}
				return
			}
			if len(hooks) != 1 || hooks[0] != tt.hook {
				t.Errorf("hooks = %v, want [%s]", hooks, tt.hook)
			}
		})
	}
}

func TestSession_Login(t *testing.T) {
	checker, sessions, h := newTestRouter(Config{})

	rec, _ := do(t, h, http.MethodPost, "/api/v1/session/login", `{"username":"ada","password":"secret"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if sessions.creds.Username != "ada" {
		t.Errorf("username = %q, want ada", sessions.creds.Username)
	}
	if hooks := checker.called(); len(hooks) != 1 || hooks[0] != "login" {
		t.Errorf("hooks = %v, want [login]", hooks)
	}
	if strings.Contains(rec.Body.String(), "token") {
		t.Error("token leaked in response")
	}
}

func TestSession_LoginValidation(t *testing.T) {
	checker, _, h := newTestRouter(Config{})

	rec, env := do(t, h, http.MethodPost, "/api/v1/session/login", `{"username":"ada"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v", env.Error)
	}
	if len(checker.called()) != 0 {
		t.Error("hooks fired for an invalid login")
	}
}

func TestSession_GatewayErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		setup  func(*fakeSessions)
		status int
		hooks  int
	}{
		{
			name:   "login rejected",
			path:   "/api/v1/session/login",
			setup:  func(s *fakeSessions) { s.loginErr = fmt.Errorf("%w: login rejected", gateway.ErrUnauthorized) },
			status: http.StatusUnauthorized,
		},
		{
			name:   "refresh breaker open",
			path:   "/api/v1/session/refresh",
			setup:  func(s *fakeSessions) { s.refreshErr = gateway.ErrCircuitOpen },
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "logout still invalidates",
			path:   "/api/v1/session/logout",
			setup:  func(s *fakeSessions) { s.logoutErr = fmt.Errorf("connection reset") },
			status: http.StatusBadGateway,
			hooks:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, sessions, h := newTestRouter(Config{})
			tt.setup(sessions)

			rec, env := do(t, h, http.MethodPost, tt.path, `{"username":"ada","password":"secret"}`)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if env.Error == nil {
				t.Fatal("error body missing")
			}
			if got := len(checker.called()); got != tt.hooks {
				t.Errorf("hooks = %d, want %d", got, tt.hooks)
			}
		})
	}
}

func TestSession_RefreshAndLogout(t *testing.T) {
	checker, _, h := newTestRouter(Config{})

	for _, path := range []string{"/api/v1/session/refresh", "/api/v1/session/logout"} {
		if rec, _ := do(t, h, http.MethodPost, path, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("%s status = %d, want 204", path, rec.Code)
		}
	}

	hooks := checker.called()
	if len(hooks) != 2 || hooks[0] != "refresh" || hooks[1] != "logout" {
		t.Errorf("hooks = %v, want [refresh logout]", hooks)
	}
}

func TestResourcesAndStats(t *testing.T) {
	_, _, h := newTestRouter(Config{})

	_, env := do(t, h, http.MethodGet, "/api/v1/resources", "")
	var list []resource.Descriptor
	decodeData(t, env, &list)
	if len(list) != 1 || list[0].Name != "posts" {
		t.Errorf("resources = %+v", list)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/stats", "")
	var stats access.Stats
	decodeData(t, env, &stats)
	if stats.CachedDecisions != 3 || stats.Backend != "native" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHealth(t *testing.T) {
	_, _, h := newTestRouter(Config{Version: "1.2.3"})

	rec, env := do(t, h, http.MethodGet, "/health/live", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("X-Request-ID missing")
	}
	var live HealthStatus
	decodeData(t, env, &live)
	if live.Status != "ok" || live.Version != "1.2.3" || live.Access != nil {
		t.Errorf("live = %+v", live)
	}

	_, env = do(t, h, http.MethodGet, "/health/ready", "")
	var ready HealthStatus
	decodeData(t, env, &ready)
	if ready.Access == nil || ready.Access.Generation != 2 {
		t.Errorf("ready = %+v, want access stats", ready)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, h := newTestRouter(Config{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "portcullis_") {
		t.Error("exposition carries no portcullis metrics")
	}
}

func TestRateLimit(t *testing.T) {
	_, _, h := newTestRouter(Config{RateLimitReqs: 2, RateLimitWindow: time.Hour})

	for i := 0; i < 2; i++ {
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/stats", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec, env := do(t, h, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("error = %+v", env.Error)
	}

	// Health checks are not limited.
	if rec, _ := do(t, h, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	_, _, h := newTestRouter(Config{RateLimitReqs: 1, RateLimitWindow: time.Hour, RateLimitDisabled: true})

	for i := 0; i < 3; i++ {
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/stats", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}
