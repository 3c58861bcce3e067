// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

/*
Package supervisor runs the Portcullis sidecar under a suture v4 tree.

	Root ("portcullis")
	├── CoreSupervisor ("core-layer")
	│   └── ShutdownService (token store, access controller)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's backoff; failures are counted
per layer, so an HTTP server that keeps failing to bind does not restart the
core layer.

# Logging

Supervisor events go through sutureslog into the global zerolog logger via
logging.NewSlogLogger:

	tree := supervisor.NewTree(logging.NewSlogLogger(), cfg.Supervisor)
	tree.AddCoreService(shutdown)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err := tree.Serve(ctx)

Service wrappers live in the services subpackage.
*/
package supervisor
