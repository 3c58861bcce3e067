// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

// Package enforcer evaluates (subject, object, action) requests against a
// parsed policy set.
//
// Two backends implement Evaluator:
//   - Enforcer: the native evaluator, a breadth-first walk of role
//     memberships followed by a scan of the reachable subjects' policies.
//   - CasbinEnforcer: the same model expressed as a Casbin model and run by
//     casbin.SyncedEnforcer.
//
// Both resolve effects the same way: a request is allowed when at least one
// matching policy allows it and none denies it. The order of policies in the
// input never changes the outcome.
package enforcer

import (
	"errors"
	"fmt"

	"github.com/tomtom215/portcullis/internal/policy"
)

// ErrUnknownBackend is returned by NewBuilder for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown enforcer backend")

// Evaluator answers enforce(subject, object, action).
type Evaluator interface {
	Enforce(subject, object, action string) (bool, error)
}

// Explainer is implemented by evaluators that can report why a request was
// decided the way it was.
type Explainer interface {
	Explain(subject, object, action string) Explanation
}

// Explanation describes a single evaluation.
type Explanation struct {
	Allowed bool
	// Reachable lists the subject and every role it inherits, each once.
	Reachable []string
	// Allows and Denies are the matching policies by effect.
	Allows []policy.Policy
	Denies []policy.Policy
}

// Reason returns a short human readable reason for a denied request.
func (x Explanation) Reason() string {
	switch {
	case x.Allowed:
		return ""
	case len(x.Denies) > 0:
		return "denied by policy " + x.Denies[0].String()
	default:
		return "no matching policy"
	}
}

// Builder constructs an evaluator from a policy set.
type Builder func(set *policy.Set) (Evaluator, error)

// Backend names accepted by NewBuilder.
const (
	BackendNative = "native"
	BackendCasbin = "casbin"
)

// NewBuilder returns the Builder for a backend name. An empty name selects
// the native backend.
func NewBuilder(backend string) (Builder, error) {
	switch backend {
	case "", BackendNative:
		return func(set *policy.Set) (Evaluator, error) { return New(set), nil }, nil
	case BackendCasbin:
		return func(set *policy.Set) (Evaluator, error) { return NewCasbin(set) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Enforcer is the native evaluator. It is immutable after New and safe for
// concurrent use.
type Enforcer struct {
	bySubject map[string][]policy.Policy
	parents   map[string][]string
	policies  int
	groupings int
}

// New indexes a policy set. A nil set yields an enforcer that denies everything.
func New(set *policy.Set) *Enforcer {
	e := &Enforcer{
		bySubject: make(map[string][]policy.Policy),
		parents:   make(map[string][]string),
	}
	if set == nil {
		return e
	}
	for _, p := range set.Policies {
		e.bySubject[p.Subject] = append(e.bySubject[p.Subject], p)
	}
	for _, g := range set.Groupings {
		e.parents[g.Member] = append(e.parents[g.Member], g.Role)
	}
	e.policies = len(set.Policies)
	e.groupings = len(set.Groupings)
	return e
}

// Stats reports the number of indexed policies and groupings.
func (e *Enforcer) Stats() (policies, groupings int) {
	return e.policies, e.groupings
}

// Enforce implements Evaluator. The native backend never returns an error.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	return e.Explain(subject, object, action).Allowed, nil
}

// Explain evaluates the request and records the policies that matched.
func (e *Enforcer) Explain(subject, object, action string) Explanation {
	x := Explanation{Reachable: e.ReachableSubjects(subject)}
	for _, sub := range x.Reachable {
		for _, p := range e.bySubject[sub] {
			if !p.Matches(object, action) {
				continue
			}
			if p.Effect == policy.EffectDeny {
				x.Denies = append(x.Denies, p)
			} else {
				x.Allows = append(x.Allows, p)
			}
		}
	}
	x.Allowed = len(x.Allows) > 0 && len(x.Denies) == 0
	return x
}

// ReachableSubjects returns subject followed by every role reachable from it
// through groupings, in breadth-first order. Cycles are visited once.
func (e *Enforcer) ReachableSubjects(subject string) []string {
	visited := map[string]struct{}{subject: {}}
	out := []string{subject}
	for i := 0; i < len(out); i++ {
		for _, role := range e.parents[out[i]] {
			if _, seen := visited[role]; seen {
				continue
			}
			visited[role] = struct{}{}
			out = append(out, role)
		}
	}
	return out
}
