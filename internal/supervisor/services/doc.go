// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

/*
Package services provides suture.Service wrappers for Portcullis components.

Each wrapper turns a component lifecycle into suture's context-aware Serve:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Runs ListenAndServe and shuts the server down when ctx is canceled
  - Uses its own shutdown timeout, since ctx is already done by then

Shutdown Hooks (ShutdownService):
  - Holds close functions for process-wide resources (token store,
    access controller)
  - Runs them once, newest first, when the supervisor stops

Services implement fmt.Stringer so supervisor events name them.
*/
package services
