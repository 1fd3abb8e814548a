// Package reconciler keeps the binding table converged with the install
// catalog and the resource inventory.
//
// # Engine
//
// Engine holds the core state machine. For one (tenant, resource) it
// resolves the desired install per agent type, compares that with the
// current bindings and applies the minimal mutation. Each attempt runs in a
// single store transaction that also appends the derived notifications to
// the outbox, so a rolled back attempt leaves neither bindings nor
// notifications behind.
//
// HandleResourceEvent decides what an inbound event means:
//
//   - deleted: every binding of the resource is removed, one DELETE per
//     previously bound agent type
//   - reattached without label change: one UPSERT per bound agent type,
//     no binding mutation
//   - labels changed: the resource is looked up in the inventory and, when
//     it is connected through an execution agent, converged
//
// ReconcileCandidate and BindCandidate serve install creation, where a new
// install is offered to every resource it matches.
//
// # Manager
//
// Manager consumes events from an EventSource or from Submit and hands
// them to the engine through a keyed queue. Events for the same resource
// are processed one at a time in arrival order. Attempts that fail because
// a collaborator is unavailable are redelivered with exponential backoff,
// bounded by MaxRetries; other failures are logged and dropped.
//
//	engine := reconciler.NewEngine(reconciler.EngineConfig{Store: st, Inventory: inv})
//	manager := reconciler.NewManager(engine, fileInventory, reconciler.ManagerConfig{})
//	if err := manager.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start reconciliation: %w", err)
//	}
//	defer manager.Stop()
package reconciler
