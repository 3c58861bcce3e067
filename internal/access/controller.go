// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

// Package access answers "can the current user perform this action on this
// resource" for the console.
//
// A Controller owns every piece of mutable state involved: the decision
// cache, the identity cache and the enforcer built from the user's
// permissions. Can never returns an error. Anything that goes wrong while
// evaluating becomes a deny decision with a reason.
//
// Evaluation is role-disjunctive: the user is allowed when any one of their
// roles is allowed on its own, or when policies targeting the user id allow
// it. A deny attached to one role therefore does not cancel an allow
// granted by another role.
package access

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/portcullis/internal/enforcer"
	"github.com/tomtom215/portcullis/internal/identity"
	"github.com/tomtom215/portcullis/internal/logging"
	"github.com/tomtom215/portcullis/internal/metrics"
	"github.com/tomtom215/portcullis/internal/policy"
	"github.com/tomtom215/portcullis/internal/resource"
)

const (
	// DefaultDecisionTTL is how long a decision is reused. Permission
	// revocations can take this long to show in the console.
	DefaultDecisionTTL = 5 * time.Minute

	// DefaultEvalTimeout bounds one evaluation so a stuck gateway call
	// cannot hold its single-flight slot forever.
	DefaultEvalTimeout = 10 * time.Second

	// maxBatchParallelism bounds concurrent evaluations in CanAll.
	maxBatchParallelism = 8
)

// Invalidation reasons.
const (
	ReasonManual       = "manual"
	ReasonEnforcer     = "enforcer"
	ReasonLogin        = "login"
	ReasonLogout       = "logout"
	ReasonTokenRefresh = "token_refresh"
	ReasonForcedLogout = "forced_logout"
)

// Params are the optional inputs of a check. Only ID takes part in the cache
// key; Extra feeds custom action templates.
type Params struct {
	ID    string            `json:"id,omitempty"`
	Extra map[string]string `json:"extra,omitempty"`
}

// Request is one access check.
type Request struct {
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Params   Params `json:"params"`
}

// Key identifies cached decisions.
type Key struct {
	Resource string
	Action   string
	ID       string
}

func (k Key) String() string {
	return k.Resource + "\x00" + k.Action + "\x00" + k.ID
}

// KeyFor returns the cache key of r.
func KeyFor(r Request) Key {
	return Key{Resource: r.Resource, Action: r.Action, ID: r.Params.ID}
}

// Decision is the answer to a check. Reason is set on every deny.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...interface{}) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Identities is the view of the identity cache the Controller needs.
type Identities interface {
	Snapshot(ctx context.Context) (identity.Snapshot, error)
	Invalidate(reason string) uint64
}

// Config configures a Controller.
type Config struct {
	// Backend names the enforcer implementation, see enforcer.NewBuilder.
	Backend string `koanf:"backend" validate:"omitempty,oneof=native casbin"`

	// DecisionTTL defaults to DefaultDecisionTTL.
	DecisionTTL time.Duration `koanf:"decision_ttl" validate:"min=0"`

	// EvalTimeout bounds one evaluation. Zero selects DefaultEvalTimeout;
	// a negative value disables the timeout.
	EvalTimeout time.Duration `koanf:"eval_timeout"`

	// Builder overrides Backend when set.
	Builder enforcer.Builder `koanf:"-"`
}

// Stats describes the Controller state.
type Stats struct {
	CachedDecisions int    `json:"cached_decisions"`
	Generation      uint64 `json:"generation"`
	PolicyVersion   string `json:"policy_version,omitempty"`
	Backend         string `json:"backend"`
}

// Controller is safe for concurrent use. Call Close to stop its cleanup
// goroutine.
type Controller struct {
	registry    *resource.Registry
	identities  Identities
	enforcers   *versionedEnforcer
	decisions   *decisionCache
	flights     singleflight.Group
	evalTimeout time.Duration
	backend     string

	// mu orders invalidation against the start of a check: a check that
	// read the cache before an invalidation can never store its result
	// into the generation that follows it.
	mu sync.RWMutex
}

// New creates a Controller.
func New(cfg Config, registry *resource.Registry, identities Identities) (*Controller, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = enforcer.BackendNative
	}

	build := cfg.Builder
	if build == nil {
		var err error
		if build, err = enforcer.NewBuilder(backend); err != nil {
			return nil, err
		}
	}

	timeout := cfg.EvalTimeout
	if timeout == 0 {
		timeout = DefaultEvalTimeout
	}

	return &Controller{
		registry:    registry,
		identities:  identities,
		enforcers:   newVersionedEnforcer(backend, build),
		decisions:   newDecisionCache(cfg.DecisionTTL),
		evalTimeout: timeout,
		backend:     backend,
	}, nil
}

// Close stops background work. It is safe to call more than once.
func (c *Controller) Close() {
	c.decisions.stop()
}

// Can answers one check. It never panics and never returns an error; every
// failure is a deny with a reason.
func (c *Controller) Can(ctx context.Context, req Request) Decision {
	start := time.Now()
	key := KeyFor(req)

	c.mu.RLock()
	gen := c.decisions.generation()
	cached, ok := c.decisions.get(key)
	c.mu.RUnlock()

	if ok {
		metrics.DecisionCacheHits.Inc()
		metrics.RecordDecision(req.Resource, req.Action, cached.Allowed, true, time.Since(start))
		return cached
	}
	metrics.DecisionCacheMisses.Inc()

	// The flight outlives any single caller, so it runs detached from the
	// caller's cancellation and is bounded by evalTimeout instead.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(fmt.Sprintf("%d\x00%s", gen, key), func() (interface{}, error) {
		d, transient := c.evaluate(flightCtx, req, gen)
		if !transient && !c.decisions.set(key, gen, d) {
			logging.Ctx(ctx).Debug().Str("check", Describe(req)).Msg("Dropped decision from invalidated generation")
		}
		return d, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.SingleFlightShared.Inc()
		}
		d, _ := res.Val.(Decision)
		metrics.RecordDecision(req.Resource, req.Action, d.Allowed, false, time.Since(start))
		return d
	case <-ctx.Done():
		metrics.EvaluationErrors.WithLabelValues("canceled").Inc()
		return deny("check canceled: %v", ctx.Err())
	}
}

// CanAll answers many checks at once, in request order.
func (c *Controller) CanAll(ctx context.Context, reqs []Request) []Decision {
	out := make([]Decision, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchParallelism)
	for i, req := range reqs {
		g.Go(func() error {
			out[i] = c.Can(gctx, req)
			return nil
		})
	}
	_ = g.Wait() // Can never fails
	return out
}

// evaluate runs the miss path for cache generation gen. transient reports
// a failure that should not be cached because a retry may succeed.
func (c *Controller) evaluate(ctx context.Context, req Request, gen uint64) (d Decision, transient bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EvaluationErrors.WithLabelValues("panic").Inc()
			logging.Ctx(ctx).Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Access check panicked")
			d, transient = deny("internal error: %v", r), false
		}
	}()

	if c.evalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.evalTimeout)
		defer cancel()
	}

	desc, err := c.registry.Get(req.Resource)
	if err != nil {
		return c.fail(ctx, "resource", req, err), false
	}

	snap, err := c.identities.Snapshot(ctx)
	if err != nil {
		transient = errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
		return c.fail(ctx, "fetch", req, fmt.Errorf("load permissions: %w", err)), transient
	}
	if snap.Identity == nil {
		return deny("not authenticated"), false
	}
	if snap.Permissions == nil {
		return deny("no permissions loaded"), false
	}

	target, err := resource.Resolve(desc, req.Action, resource.Params{ID: req.Params.ID, Values: req.Params.Extra})
	if err != nil {
		return c.fail(ctx, "resolve", req, err), false
	}
	if target.AlwaysAllow {
		return allow(), false
	}

	set, err := policy.ParseLines(snap.Permissions)
	if err != nil {
		return c.fail(ctx, "policy", req, err), false
	}
	set = set.WithGroupings(policy.SynthesizeGroupings(snap.Identity.ID, snap.Identity.Roles)...)

	ev, err := c.enforcers.get(set, gen)
	if err != nil {
		return c.fail(ctx, "build", req, err), false
	}

	for _, subject := range subjects(snap.Identity) {
		ok, err := ev.Enforce(subject, target.Path, target.Method)
		if err != nil {
			return c.fail(ctx, "enforce", req, err), false
		}
		if ok {
			return allow(), false
		}
	}

	return deny("%s", denyReason(ev, snap.Identity.ID, target)), false
}

// fail records an evaluation failure and turns it into a deny.
func (c *Controller) fail(ctx context.Context, kind string, req Request, err error) Decision {
	metrics.EvaluationErrors.WithLabelValues(kind).Inc()
	logging.Ctx(ctx).Warn().Err(err).Str("check", Describe(req)).Str("stage", kind).Msg("Access check failed, denying")
	return Decision{Reason: err.Error()}
}

// subjects lists the roles in order, then the user id itself.
func subjects(id *identity.Identity) []string {
	out := make([]string, 0, len(id.Roles)+1)
	for _, r := range id.Roles {
		if r != "" && r != id.ID {
			out = append(out, r)
		}
	}
	return append(out, id.ID)
}

func denyReason(ev enforcer.Evaluator, userID string, target resource.Target) string {
	if x, ok := ev.(enforcer.Explainer); ok {
		if reason := x.Explain(userID, target.Path, target.Method).Reason(); reason != "" {
			return reason
		}
	}
	return fmt.Sprintf("no role grants %s %s", target.Method, target.Path)
}

// ClearPermissionCache drops cached decisions, the identity and permission
// cache, and the enforcer. The next check starts from scratch.
func (c *Controller) ClearPermissionCache() {
	c.invalidate(ReasonManual)
}

// ClearEnforcer drops the enforcer and the decisions derived from it while
// keeping the cached identity and permissions.
func (c *Controller) ClearEnforcer() {
	c.mu.Lock()
	gen := c.decisions.clear()
	c.enforcers.clear(gen)
	c.mu.Unlock()

	metrics.InvalidationsTotal.WithLabelValues(ReasonEnforcer).Inc()
	logging.Debug().Uint64("generation", gen).Msg("Enforcer cleared")
}

// OnLogin must be called after a successful login.
func (c *Controller) OnLogin() { c.invalidate(ReasonLogin) }

// OnLogout must be called after logout.
func (c *Controller) OnLogout() { c.invalidate(ReasonLogout) }

// OnTokenRefresh must be called after an explicit token refresh.
func (c *Controller) OnTokenRefresh() { c.invalidate(ReasonTokenRefresh) }

// OnForcedLogout is the gateway hook for sessions ended by a failed refresh.
func (c *Controller) OnForcedLogout(context.Context) { c.invalidate(ReasonForcedLogout) }

func (c *Controller) invalidate(reason string) {
	c.mu.Lock()
	c.identities.Invalidate(reason)
	gen := c.decisions.clear()
	c.enforcers.clear(gen)
	c.mu.Unlock()

	metrics.InvalidationsTotal.WithLabelValues(reason).Inc()
	logging.Info().Str("reason", reason).Uint64("generation", gen).Msg("Permission cache cleared")
}

// Stats returns a point-in-time view of the Controller.
func (c *Controller) Stats() Stats {
	version := c.enforcers.loadedVersion()
	if len(version) > 12 {
		version = version[:12]
	}
	return Stats{
		CachedDecisions: c.decisions.size(),
		Generation:      c.decisions.generation(),
		PolicyVersion:   version,
		Backend:         c.backend,
	}
}

// Describe formats a request for logs.
func Describe(r Request) string {
	var b strings.Builder
	b.WriteString(r.Resource)
	b.WriteByte('.')
	b.WriteString(r.Action)
	if r.Params.ID != "" {
		b.WriteByte('#')
		b.WriteString(r.Params.ID)
	}
	return b.String()
}
