// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portcullis/internal/identity"
	"github.com/tomtom215/portcullis/internal/policy"
)

var _ identity.Source = (*Client)(nil)

// FetchIdentity returns the user behind the current token.
func (c *Client) FetchIdentity(ctx context.Context) (*identity.Identity, error) {
	var id identity.Identity
	if err := c.do(ctx, http.MethodGet, c.cfg.Paths.Me, nil, &id); err != nil {
		return nil, err
	}
	if id.ID == "" {
		return nil, fmt.Errorf("gateway %s: identity without id", c.cfg.Paths.Me)
	}
	return &id, nil
}

// FetchPermissions returns the user's policy and grouping lines. The gateway
// may answer with a list of lines or with a structured payload, which is
// flattened into the same line format.
func (c *Client) FetchPermissions(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.cfg.Paths.Permissions, nil, &raw); err != nil {
		return nil, err
	}
	return decodePermissions(raw)
}

func decodePermissions(raw []byte) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}

	if raw[0] == '[' {
		var lines []string
		if err := json.Unmarshal(raw, &lines); err != nil {
			return nil, fmt.Errorf("decode permission lines: %w", err)
		}
		return lines, nil
	}

	var payload policy.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode permission payload: %w", err)
	}
	return policy.Flatten(payload), nil
}
