// Package logging provides the structured logging used across agentcatalog.
//
// It is a thin layer over log/slog. Every entry carries a subsystem
// attribute so that output from the reconciliation engine, the outbox
// dispatcher and the inventory watcher can be filtered independently.
//
// # Initialization
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Engine", "Converged %s/%s", tenantID, resourceID)
//	logging.Debug("Store", "Opened database at %s", path)
//	logging.Warn("Dispatcher", "Publish failed, will retry on next pass")
//	logging.Error("Catalog", err, "Failed to create install")
//
// Before Init is called, only Error entries are written (to stderr).
//
// # Subsystems
//
//   - Bootstrap: application startup and shutdown
//   - Store: SQLite pool and schema
//   - Catalog: release and install declarations
//   - Engine: binding reconciliation
//   - ReconcileManager: event intake, work queue and workers
//   - Dispatcher: outbox delivery
//   - FileInventory: file-backed resource inventory and watcher
//   - InventoryServer: HTTP front end of the inventory
//   - Ingest: pushed resource event endpoint
//   - Notifier: notification publishers
//   - ConfigLoader: configuration file loading
package logging
