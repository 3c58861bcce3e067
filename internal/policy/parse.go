// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedLine is returned for policy lines that cannot be parsed.
var ErrMalformedLine = errors.New("malformed policy line")

// LineError describes one rejected line.
type LineError struct {
	Index  int // zero-based position in the input, -1 when unknown
	Line   string
	Reason string
}

// Error implements the error interface.
func (e *LineError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s at %d (%q): %s", ErrMalformedLine, e.Index, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s (%q): %s", ErrMalformedLine, e.Line, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedLine.
func (e *LineError) Unwrap() error { return ErrMalformedLine }

// ParseLine parses a single "p" or "g" line.
func ParseLine(s string) (Line, error) {
	return parseLine(s, -1)
}

func parseLine(s string, index int) (Line, error) {
	fail := func(format string, args ...any) (Line, error) {
		return nil, &LineError{Index: index, Line: s, Reason: fmt.Sprintf(format, args...)}
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for i, p := range parts {
		if p == "" {
			return fail("field %d is empty", i)
		}
	}

	switch parts[0] {
	case "p":
		// subject, object, action[, effect]. The action is a regex and may
		// itself contain commas; it then needs an explicit effect.
		if len(parts) < 4 {
			return fail("policy needs 3 or 4 fields, got %d", len(parts)-1)
		}
		pol := Policy{Subject: parts[1], Object: parts[2], Action: parts[3], Effect: EffectAllow}
		if len(parts) > 4 {
			last := parts[len(parts)-1]
			switch Effect(strings.ToLower(last)) {
			case EffectAllow:
				pol.Effect = EffectAllow
			case EffectDeny:
				pol.Effect = EffectDeny
			default:
				if len(parts) == 5 {
					return fail("unknown effect %q", last)
				}
				return fail("policy with a comma in its action needs an explicit effect, got %q", last)
			}
			pol.Action = strings.Join(parts[3:len(parts)-1], ",")
		}
		if err := compileAction(pol.Action); err != nil {
			return fail("action pattern: %v", err)
		}
		return pol, nil
	case "g":
		if len(parts) != 3 {
			return fail("grouping needs 2 fields, got %d", len(parts)-1)
		}
		return Grouping{Member: parts[1], Role: parts[2]}, nil
	default:
		return fail("unknown line type %q", parts[0])
	}
}

// ParseLines parses a permission list into a Set. Blank lines and lines
// starting with '#' are ignored. Every malformed line is reported; the set
// is only returned when all lines parsed.
func ParseLines(lines []string) (*Set, error) {
	set := &Set{}
	var errs []error
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		line, err := parseLine(trimmed, i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set.add(line)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

// Payload is the structured permission response some gateways return
// instead of a flat line list.
type Payload struct {
	Permissions []PermissionEntry `json:"permissions"`
	Groupings   []GroupingEntry   `json:"groupings"`
}

// PermissionEntry is one permission in a Payload. Subject and Effect are optional.
type PermissionEntry struct {
	Subject  string `json:"subject,omitempty"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Effect   string `json:"effect,omitempty"`
}

// GroupingEntry is one role edge in a Payload.
type GroupingEntry struct {
	Child  string `json:"child"`
	Parent string `json:"parent"`
}

// Flatten renders a structured payload in the flat line format accepted by
// ParseLines. Entries without a subject are attributed to SelfRole.
func Flatten(p Payload) []string {
	out := make([]string, 0, len(p.Permissions)+len(p.Groupings))
	for _, e := range p.Permissions {
		subject := e.Subject
		if subject == "" {
			subject = SelfRole
		}
		effect := e.Effect
		if effect == "" {
			effect = string(EffectAllow)
		}
		out = append(out, strings.Join([]string{"p", subject, e.Resource, e.Action, effect}, ", "))
	}
	for _, g := range p.Groupings {
		out = append(out, strings.Join([]string{"g", g.Child, g.Parent}, ", "))
	}
	return out
}
