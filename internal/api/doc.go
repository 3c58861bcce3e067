// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

/*
Package api exposes the access controller over HTTP.

Routes:

	GET  /health/live          liveness
	GET  /health/ready         readiness with controller stats
	GET  /metrics              Prometheus exposition

	GET  /api/v1/can           ?resource=posts&action=edit&id=7
	POST /api/v1/can           {"resource":"posts","action":"edit","params":{"id":"7"}}
	POST /api/v1/can/batch     {"checks":[...]}, answers in request order
	GET  /api/v1/resources     registered resource descriptors
	GET  /api/v1/stats         decision cache and policy version
	POST /api/v1/cache/clear   {"scope":"all"|"enforcer"}

	POST /api/v1/session/login    credentials, then caches are invalidated
	POST /api/v1/session/refresh  new access token, then caches are invalidated
	POST /api/v1/session/logout   gateway logout, then caches are invalidated

Every JSON response uses the APIResponse envelope. A denied check is a
successful response with "can": false; HTTP errors are reserved for bad
requests and gateway failures.
*/
package api
