// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package enforcer

import (
	_ "embed"
	"fmt"
	"slices"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/portcullis/internal/policy"
)

//go:embed model.conf
var embeddedModel string

// CasbinEnforcer runs the policy model on casbin.SyncedEnforcer. Path and
// action matching are delegated to the policy package so that both backends
// agree on every request.
//
// Casbin's default role manager stops following groupings after ten levels;
// deeper hierarchies are only fully honored by the native backend.
type CasbinEnforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewCasbin builds a Casbin enforcer loaded with the policy set.
func NewCasbin(set *policy.Set) (*CasbinEnforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	enforcer.AddFunction("pathMatch", func(args ...interface{}) (interface{}, error) {
		object, pattern, err := twoStrings("pathMatch", args)
		if err != nil {
			return false, err
		}
		return policy.MatchPath(object, pattern), nil
	})
	enforcer.AddFunction("actionMatch", func(args ...interface{}) (interface{}, error) {
		action, pattern, err := twoStrings("actionMatch", args)
		if err != nil {
			return false, err
		}
		return policy.MatchAction(action, pattern), nil
	})

	if set != nil {
		if rules := policyRules(set); len(rules) > 0 {
			if _, err := enforcer.AddPolicies(rules); err != nil {
				return nil, fmt.Errorf("failed to add policies: %w", err)
			}
		}
		if rules := groupingRules(set); len(rules) > 0 {
			if _, err := enforcer.AddGroupingPolicies(rules); err != nil {
				return nil, fmt.Errorf("failed to add grouping policies: %w", err)
			}
		}
	}

	return &CasbinEnforcer{enforcer: enforcer}, nil
}

// Enforce implements Evaluator.
func (c *CasbinEnforcer) Enforce(subject, object, action string) (bool, error) {
	allowed, err := c.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// AddPolicies rejects the whole batch when any rule already exists, so
// duplicates are dropped here.
func policyRules(set *policy.Set) [][]string {
	rules := make([][]string, 0, len(set.Policies))
	for _, p := range set.Policies {
		rule := []string{p.Subject, p.Object, p.Action, string(p.Effect)}
		if !containsRule(rules, rule) {
			rules = append(rules, rule)
		}
	}
	return rules
}

func groupingRules(set *policy.Set) [][]string {
	rules := make([][]string, 0, len(set.Groupings))
	for _, g := range set.Groupings {
		rule := []string{g.Member, g.Role}
		if !containsRule(rules, rule) {
			rules = append(rules, rule)
		}
	}
	return rules
}

func containsRule(rules [][]string, rule []string) bool {
	return slices.ContainsFunc(rules, func(r []string) bool { return slices.Equal(r, rule) })
}

func twoStrings(name string, args []interface{}) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
	}
	a, ok1 := args[0].(string)
	b, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return "", "", fmt.Errorf("%s: arguments must be strings", name)
	}
	return a, b, nil
}
