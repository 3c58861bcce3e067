// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package policy

import (
	"regexp"
	"strings"
	"sync"
)

// MatchPath reports whether object matches the path pattern.
//
// Segments are compared literally, except that {name} and :name segments
// match exactly one non-empty segment and a '*' at the end of the last
// pattern segment matches any remaining suffix (including none).
func MatchPath(object, pattern string) bool {
	if pattern == "*" || pattern == object {
		return true
	}

	ps := strings.Split(pattern, "/")
	objs := strings.Split(object, "/")

	for i, seg := range ps {
		if i == len(ps)-1 && strings.HasSuffix(seg, "*") {
			prefix := strings.TrimSuffix(seg, "*")
			if i >= len(objs) {
				return prefix == ""
			}
			return strings.HasPrefix(strings.Join(objs[i:], "/"), prefix)
		}
		if i >= len(objs) {
			return false
		}
		if isParamSegment(seg) {
			if objs[i] == "" {
				return false
			}
			continue
		}
		if seg != objs[i] {
			return false
		}
	}
	return len(ps) == len(objs)
}

func isParamSegment(seg string) bool {
	if len(seg) > 1 && seg[0] == ':' {
		return true
	}
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}

// actionPatterns caches compiled action expressions. Policy sets are small
// and reused for a whole session, so the cache is never pruned.
var actionPatterns sync.Map // map[string]*regexp.Regexp

// MatchAction reports whether action matches the anchored regular
// expression pattern. A bare "*" matches every action. Patterns that fail to
// compile never match; ParseLine rejects them up front.
func MatchAction(action, pattern string) bool {
	if pattern == "*" || pattern == action {
		return true
	}
	re, err := actionRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(action)
}

func actionRegexp(pattern string) (*regexp.Regexp, error) {
	if v, ok := actionPatterns.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	actionPatterns.Store(pattern, re)
	return re, nil
}

func compileAction(pattern string) error {
	if pattern == "*" {
		return nil
	}
	_, err := actionRegexp(pattern)
	return err
}
