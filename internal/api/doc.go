// Package api holds the domain types and typed errors shared by every
// agentcatalog package.
//
// It sits at the bottom of the import graph and does not import any other
// internal package, so the store, resolver, reconciler, notifier and CLI
// can all exchange Releases, Installs, Bindings, ResourceEvents and
// Notifications without depending on each other.
//
// # Errors
//
// Callers branch on error kind with the Is* helpers, which see through
// wrapping:
//
//	install, err := svc.CreateInstall(ctx, tenantID, in)
//	switch {
//	case api.IsNotFound(err):
//	    // release does not exist
//	case api.IsConflict(err):
//	    // an install with the same release and selector exists
//	case api.IsCollaboratorUnavailable(err):
//	    // inventory failed; nothing was written
//	}
package api
