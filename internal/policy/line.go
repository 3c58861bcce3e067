// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package policy

import (
	"fmt"
	"strings"
)

// Effect is the outcome attached to a policy.
type Effect string

const (
	// EffectAllow grants the request when the policy matches.
	EffectAllow Effect = "allow"

	// EffectDeny refuses the request when the policy matches and overrides any allow.
	EffectDeny Effect = "deny"
)

// SelfRole is the role that policies without an explicit subject are
// attributed to. The signed-in user is always grouped into it.
const SelfRole = "@self"

// LineKind distinguishes the two kinds of policy line.
type LineKind int

const (
	// KindPolicy is a "p" line.
	KindPolicy LineKind = iota + 1

	// KindGrouping is a "g" line.
	KindGrouping
)

// String implements fmt.Stringer.
func (k LineKind) String() string {
	switch k {
	case KindPolicy:
		return "p"
	case KindGrouping:
		return "g"
	default:
		return fmt.Sprintf("LineKind(%d)", int(k))
	}
}

// Line is a parsed policy line. It is either a Policy or a Grouping.
type Line interface {
	Kind() LineKind
	String() string
	isLine()
}

// Policy grants or denies Subject the Action on objects matching Object.
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
	Effect  Effect `json:"effect"`
}

// Kind implements Line.
func (Policy) Kind() LineKind { return KindPolicy }

// String renders the policy in canonical line form.
func (p Policy) String() string {
	return strings.Join([]string{"p", p.Subject, p.Object, p.Action, string(p.Effect)}, ", ")
}

func (Policy) isLine() {}

// Matches reports whether the policy applies to object and action.
// The subject is not considered; callers select policies by subject.
func (p Policy) Matches(object, action string) bool {
	return MatchPath(object, p.Object) && MatchAction(action, p.Action)
}

// Grouping makes Member inherit every policy of Role. Member may itself be
// a role, which gives role-to-role inheritance.
type Grouping struct {
	Member string `json:"member"`
	Role   string `json:"role"`
}

// Kind implements Line.
func (Grouping) Kind() LineKind { return KindGrouping }

// String renders the grouping in canonical line form.
func (g Grouping) String() string {
	return strings.Join([]string{"g", g.Member, g.Role}, ", ")
}

func (Grouping) isLine() {}

// SynthesizeGroupings returns the role assignments of the signed-in user:
// one grouping per role plus membership of SelfRole.
func SynthesizeGroupings(userID string, roles []string) []Grouping {
	if userID == "" {
		return nil
	}
	out := make([]Grouping, 0, len(roles)+1)
	out = append(out, Grouping{Member: userID, Role: SelfRole})
	for _, r := range roles {
		if r == "" || r == userID {
			continue
		}
		out = append(out, Grouping{Member: userID, Role: r})
	}
	return out
}
