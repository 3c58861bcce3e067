// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

/*
Command server runs the Portcullis access-control sidecar.

The sidecar signs in to the admin gateway, caches the signed-in user's
identity and permission lines, and answers "can this user perform this
action on this resource" checks over HTTP for an admin console.

# Startup order

 1. Configuration: defaults, YAML file, PORTCULLIS_* environment (koanf v2)
 2. Logging: zerolog, with suture events bridged through slog
 3. Session store: memory or badger
 4. Gateway client: rate limited, circuit broken, token refresh on 401
 5. Identity cache and resource registry
 6. Access controller: decision cache over a versioned enforcer
 7. HTTP API under the supervisor tree

# Example

	export PORTCULLIS_GATEWAY_URL=https://admin.example.com/api
	export PORTCULLIS_SESSION_STORE=badger
	export PORTCULLIS_SESSION_STORE_PATH=/var/lib/portcullis
	./portcullis

Resources are declared in the YAML file; see the config package.

# Signals

SIGINT and SIGTERM stop the HTTP server, then close the access controller
and the session store.
*/
package main
