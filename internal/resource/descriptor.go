// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

// Package resource describes the entities managed by the console and maps
// abstract (resource, action) checks onto the concrete (path, method) pairs
// the enforcer evaluates.
//
// A resource is normally declared with its route table only:
//
//	resources:
//	  - name: users
//	    routes:
//	      list: /system/users
//	      edit: /system/users/edit/:id
//	    custom_actions:
//	      reset_password: { path: "{id}/password", method: POST }
//
// Registration derives the two base paths from routes.list:
//
//	api_base:        system/users   (no leading slash, used to call the API)
//	permission_base: /system/users  (leading slash, matches the gateway's route table)
//
// The asymmetry is deliberate: permission paths must line up with how the
// gateway registers its own routes, API paths are joined onto a base URL.
//
// A resource with no routes, bases or custom actions is a parent menu. It
// only groups menu entries and is always accessible.
package resource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/portcullis/internal/validation"
)

// Standard actions understood by every resource.
const (
	ActionList   = "list"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionShow   = "show"
	ActionDelete = "delete"
	ActionClone  = "clone"
)

// Resolution and registration errors.
var (
	// ErrConfiguration indicates a resource declaration that cannot work.
	ErrConfiguration = errors.New("resource configuration error")

	// ErrUnknownResource is returned for names that were never registered.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrUnknownAction is returned for actions that are neither standard nor custom.
	ErrUnknownAction = errors.New("unknown action")

	// ErrMissingParam is returned when a path needs a parameter the caller did not pass.
	ErrMissingParam = errors.New("missing required parameter")

	// ErrInvalidParam is returned when a parameter value would change the
	// shape of the path, such as an id containing a slash.
	ErrInvalidParam = errors.New("invalid parameter")
)

// Routes are the console routes of a resource.
type Routes struct {
	List   string `koanf:"list" json:"list,omitempty" validate:"omitempty,pathtemplate"`
	Create string `koanf:"create" json:"create,omitempty" validate:"omitempty,pathtemplate"`
	Edit   string `koanf:"edit" json:"edit,omitempty" validate:"omitempty,pathtemplate"`
	Show   string `koanf:"show" json:"show,omitempty" validate:"omitempty,pathtemplate"`
	Clone  string `koanf:"clone" json:"clone,omitempty" validate:"omitempty,pathtemplate"`
}

func (r Routes) empty() bool {
	return r == Routes{}
}

// CustomAction overrides the standard derivation for one action name.
// A relative Path is joined under the permission base; an absolute one is
// used as is.
type CustomAction struct {
	Path   string `koanf:"path" json:"path" validate:"required,pathtemplate"`
	Method string `koanf:"method" json:"method" validate:"required,httpmethod"`
}

// Meta is display metadata carried for menu rendering.
type Meta struct {
	Label     string `koanf:"label" json:"label,omitempty"`
	Parent    string `koanf:"parent" json:"parent,omitempty"`
	Sort      int    `koanf:"sort" json:"sort,omitempty"`
	CanDelete bool   `koanf:"can_delete" json:"canDelete,omitempty"`
}

// Descriptor is the static declaration of a manageable entity.
type Descriptor struct {
	Name           string                  `koanf:"name" json:"name" validate:"required"`
	Routes         Routes                  `koanf:"routes" json:"routes"`
	APIBase        string                  `koanf:"api_base" json:"apiBase,omitempty"`
	PermissionBase string                  `koanf:"permission_base" json:"permissionBase,omitempty"`
	CustomActions  map[string]CustomAction `koanf:"custom_actions" json:"customActions,omitempty" validate:"dive,keys,required,endkeys"`
	Meta           Meta                    `koanf:"meta" json:"meta"`
	ParentMenu     bool                    `koanf:"parent_menu" json:"parentMenu,omitempty"`
}

// normalize validates the declaration and fills in the derived bases.
func (d *Descriptor) normalize() error {
	if err := validation.ValidateStruct(d); err != nil {
		return fmt.Errorf("%w: resource %q: %w", ErrConfiguration, d.Name, err)
	}

	if !d.ParentMenu && d.Routes.empty() && d.APIBase == "" && d.PermissionBase == "" && len(d.CustomActions) == 0 {
		d.ParentMenu = true
	}
	if d.ParentMenu {
		return nil
	}

	if d.PermissionBase == "" {
		src := d.APIBase
		if src == "" {
			src = d.Routes.List
		}
		d.PermissionBase = permissionPath(src)
	} else {
		d.PermissionBase = permissionPath(d.PermissionBase)
	}
	if d.APIBase == "" {
		src := d.Routes.List
		if src == "" {
			src = d.PermissionBase
		}
		d.APIBase = apiPath(src)
	} else {
		d.APIBase = apiPath(d.APIBase)
	}

	if d.PermissionBase == "" || d.PermissionBase == "/" {
		return fmt.Errorf("%w: resource %q has no list route, api base or permission base", ErrConfiguration, d.Name)
	}
	return nil
}

// permissionPath gives p exactly one leading slash and no trailing slash.
func permissionPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// apiPath strips leading and trailing slashes.
func apiPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}
