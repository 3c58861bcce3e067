// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// Set is an immutable-by-convention collection of parsed policy lines.
type Set struct {
	Policies  []Policy
	Groupings []Grouping
}

func (s *Set) add(l Line) {
	switch v := l.(type) {
	case Policy:
		s.Policies = append(s.Policies, v)
	case Grouping:
		s.Groupings = append(s.Groupings, v)
	}
}

// Len returns the total number of lines in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Policies) + len(s.Groupings)
}

// WithGroupings returns a copy of the set with extra groupings appended.
// The receiver is not modified.
func (s *Set) WithGroupings(extra ...Grouping) *Set {
	out := &Set{}
	if s != nil {
		out.Policies = slices.Clone(s.Policies)
		out.Groupings = slices.Clone(s.Groupings)
	}
	out.Groupings = append(out.Groupings, extra...)
	return out
}

// Lines renders the set in canonical line form, policies first, in input order.
func (s *Set) Lines() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, s.Len())
	for _, p := range s.Policies {
		out = append(out, p.String())
	}
	for _, g := range s.Groupings {
		out = append(out, g.String())
	}
	return out
}

// Hash returns a content hash that ignores line order and duplicates.
func (s *Set) Hash() string {
	lines := s.Lines()
	slices.Sort(lines)
	lines = slices.Compact(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
