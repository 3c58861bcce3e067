// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

/*
Package config loads the Portcullis sidecar configuration.

# Configuration Sources

Configuration is layered with koanf, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, or the first of DefaultConfigPaths
 3. Environment variables prefixed with PORTCULLIS_

# Environment Variables

Only the variables listed in envMappings are read; anything else carrying
the prefix is ignored.

Server:
  - PORTCULLIS_HTTP_HOST, PORTCULLIS_HTTP_PORT
  - PORTCULLIS_CORS_ORIGINS: comma separated origins
  - PORTCULLIS_RATE_LIMIT_REQUESTS, PORTCULLIS_RATE_LIMIT_WINDOW
  - PORTCULLIS_ENVIRONMENT: development or production

Gateway:
  - PORTCULLIS_GATEWAY_URL: base URL of the API gateway (required)
  - PORTCULLIS_GATEWAY_TIMEOUT, PORTCULLIS_GATEWAY_ENVELOPE
  - PORTCULLIS_GATEWAY_RATE_LIMIT, PORTCULLIS_GATEWAY_BURST

Access:
  - PORTCULLIS_ENFORCER_BACKEND: native or casbin
  - PORTCULLIS_DECISION_TTL, PORTCULLIS_EVAL_TIMEOUT, PORTCULLIS_IDENTITY_TTL

Session:
  - PORTCULLIS_SESSION_STORE: memory or badger
  - PORTCULLIS_SESSION_STORE_PATH, PORTCULLIS_SESSION_NAMESPACE

Logging:
  - PORTCULLIS_LOG_LEVEL, PORTCULLIS_LOG_FORMAT, PORTCULLIS_LOG_CALLER

Resources are declared in the YAML file only:

	resources:
	  - name: posts
	    routes:
	      list: /posts
	      edit: /posts/edit/:id
	    custom_actions:
	      approve: { path: "{id}/approve", method: POST }
	  - name: system

# Validation

Load validates struct tags with the shared validator and then applies the
cross-field checks in validate.go. A Config returned by Load is immutable by
convention and safe for concurrent reads.
*/
package config
