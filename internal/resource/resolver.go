// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package resource

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Params carries the values a path may need. ID is the record id used by
// show/edit/delete; Values holds any other named template parameter.
type Params struct {
	ID     string
	Values map[string]string
}

func (p Params) lookup(name string) (string, bool) {
	if name == "id" && p.ID != "" {
		return p.ID, true
	}
	v, ok := p.Values[name]
	return v, ok && v != ""
}

// segment returns the value of name as a single path segment.
func (p Params) segment(name string) (string, error) {
	v, ok := p.lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
	}
	if v == "." || v == ".." || strings.ContainsAny(v, "/\\") {
		return "", fmt.Errorf("%w: %s=%q", ErrInvalidParam, name, v)
	}
	return v, nil
}

// Target is the concrete request an action maps to.
type Target struct {
	// Path is the permission path, always with a leading slash.
	Path string
	// APIPath is the same path without the leading slash.
	APIPath string
	Method  string
	// AlwaysAllow is set for parent menu resources.
	AlwaysAllow bool
}

var standardMethods = map[string]string{
	ActionList:   http.MethodGet,
	ActionCreate: http.MethodPost,
	ActionClone:  http.MethodPost,
	ActionShow:   http.MethodGet,
	ActionEdit:   http.MethodPatch,
	ActionDelete: http.MethodDelete,
}

// Resolve maps an action on a registered resource to its target.
func Resolve(d Descriptor, action string, params Params) (Target, error) {
	if d.ParentMenu {
		return Target{AlwaysAllow: true}, nil
	}

	if custom, ok := d.CustomActions[action]; ok {
		path, err := expandTemplate(custom.Path, params)
		if err != nil {
			return Target{}, fmt.Errorf("resource %q action %q: %w", d.Name, action, err)
		}
		if !strings.HasPrefix(path, "/") {
			path = joinPath(d.PermissionBase, path)
		}
		return newTarget(path, custom.Method), nil
	}

	method, ok := standardMethods[action]
	if !ok {
		return Target{}, fmt.Errorf("%w: resource %q has no action %q", ErrUnknownAction, d.Name, action)
	}
	if d.PermissionBase == "" {
		return Target{}, fmt.Errorf("%w: resource %q has no permission base", ErrConfiguration, d.Name)
	}

	switch action {
	case ActionShow, ActionEdit, ActionDelete:
		id, err := params.segment("id")
		if err != nil {
			return Target{}, fmt.Errorf("resource %q action %q: %w", d.Name, action, err)
		}
		return newTarget(joinPath(d.PermissionBase, id), method), nil
	default:
		return newTarget(d.PermissionBase, method), nil
	}
}

func newTarget(path, method string) Target {
	return Target{Path: path, APIPath: strings.TrimPrefix(path, "/"), Method: method}
}

func joinPath(base, rel string) string {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + rel
}

var braceParam = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandTemplate substitutes {name} anywhere and :name segments. Every
// value must stay within one path segment.
func expandTemplate(tmpl string, params Params) (string, error) {
	var errs []error
	out := braceParam.ReplaceAllStringFunc(tmpl, func(m string) string {
		v, err := params.segment(m[1 : len(m)-1])
		if err != nil {
			errs = append(errs, err)
			return m
		}
		return v
	})

	segs := strings.Split(out, "/")
	for i, seg := range segs {
		if len(seg) < 2 || seg[0] != ':' {
			continue
		}
		v, err := params.segment(seg[1:])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		segs[i] = v
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return strings.Join(segs, "/"), nil
}
