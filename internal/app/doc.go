// Package app provides application bootstrap and lifecycle management for
// agentcatalog.
//
// # Architecture Overview
//
// The package wires the components together in a fixed order:
//
//  1. Configuration: config.yaml from the configuration directory, over
//     the built-in defaults.
//  2. Logging: level and format from the configuration; --debug forces
//     the debug level.
//  3. Store: the SQLite catalog database holding releases, installs,
//     bindings and the notification outbox.
//  4. Inventory: the file-backed inventory (which also produces resource
//     events) or the HTTP client for a remote inventory.
//  5. Engine and Catalog: the binding reconciliation engine and the
//     release/install declaration service built on it.
//  6. Manager: the event intake worker pool, fed by the file inventory
//     watcher and, when enabled, the ingest endpoint.
//  7. Dispatcher: delivers committed outbox rows to the configured
//     publisher. The store's commit hook wakes it.
//
// # Usage
//
//	cfg := app.NewConfig(false, "/etc/agentcatalog")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	return application.Run(ctx)
//
// CLI commands that only read or declare catalog entries use
// Application.Services().Catalog without calling Run.
//
// # Shutdown
//
// Run blocks until ctx is cancelled or SIGINT/SIGTERM is received. The
// manager stops accepting events and drains its workers; the dispatcher
// finishes its current pass. Undelivered notifications stay in the outbox
// and are delivered on the next start.
package app
