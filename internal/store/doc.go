// Package store is the durable Install Catalog and Binding Store.
//
// Everything lives in one SQLite database accessed through
// zombiezen.com/go/sqlite. Releases, installs, the install label index,
// bindings and the notification outbox share the database so that a
// binding mutation and the notifications it produces commit atomically.
//
// # Transactions
//
// Store.Update runs a function inside BEGIN IMMEDIATE. SQLite admits one
// writer at a time, so any read-decide-write sequence inside Update is
// indivisible with respect to every other Update. This is what keeps the
// at-most-one-binding invariant under concurrent event delivery.
//
//	err := st.Update(ctx, func(tx *store.Tx) error {
//	    current, err := tx.BindingsForResource(tenantID, resourceID)
//	    ...
//	    _, err = tx.Enqueue(notification)
//	    return err
//	})
//
// Returning an error from the function rolls back every mutation and every
// enqueued notification.
//
// # Outbox
//
// Tx.Enqueue writes a pending notification. The dispatcher reads committed
// rows with PendingNotifications and marks them with MarkDelivered.
// Hooks registered with OnCommit run after a transaction that enqueued at
// least one notification commits.
package store
