// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

// Package policy defines the RBAC policy model evaluated by Portcullis.
//
// The gateway hands the console a flat list of Casbin-style lines for the
// signed-in user:
//
//	p, editor, /posts, GET, allow
//	p, editor, /posts/{id}, PATCH, deny
//	g, alice, editor
//	g, editor, viewer
//
// A "p" line is a Policy (subject, object pattern, action pattern, effect)
// and a "g" line is a Grouping (member, role). Lines are parsed once into
// typed values; malformed lines are rejected with ErrMalformedLine rather
// than being silently skipped.
//
// # Matching
//
// Objects are resource paths matched segment by segment (see MatchPath):
//
//	/posts/{id}   matches /posts/7        ({name} and :name match one segment)
//	/system/*     matches /system/users/3 (a trailing * matches any suffix)
//	*             matches everything
//
// Actions are regular expressions anchored at both ends (see MatchAction),
// so "GET|PATCH" matches "GET" but "GET" does not match "FORGET".
//
// # Versioning
//
// A Set carries a content hash. Two sets with the same lines in any order
// share a hash, which is what the access facade uses to decide whether an
// enforcer has to be rebuilt.
package policy
