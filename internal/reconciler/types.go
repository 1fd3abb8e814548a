package reconciler

import (
	"context"
	"time"

	"github.com/giantswarm/agentcatalog/internal/api"
)

// EventHandler applies one resource event. *Engine implements it.
type EventHandler interface {
	HandleResourceEvent(ctx context.Context, ev api.ResourceEvent) (Outcome, error)
}

// EventSource produces inbound resource lifecycle events.
//
// inventory.FileInventory is the filesystem implementation. Other sources
// push events through Manager.Submit instead.
type EventSource interface {
	// Start begins producing events into the provided channel. It returns
	// once the source is running.
	Start(ctx context.Context, events chan<- api.ResourceEvent) error

	// Stop stops the source.
	Stop() error
}

// request is one queued event plus its delivery attempt number.
type request struct {
	Event api.ResourceEvent

	// Attempt is the delivery attempt number, starting at 1.
	Attempt int

	// LastError is the error from the previous attempt, if any.
	LastError error
}

func (r request) key() string {
	return r.Event.Key()
}

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	// WorkerCount is the number of concurrent workers.
	// Defaults to 2 if not specified.
	WorkerCount int

	// MaxRetries is the maximum number of delivery attempts for events
	// that fail with a collaborator outage. Defaults to 5.
	MaxRetries int

	// InitialBackoff is the delay before the first redelivery.
	// Defaults to 1 second.
	InitialBackoff time.Duration

	// MaxBackoff caps the redelivery delay. Defaults to 5 minutes.
	MaxBackoff time.Duration

	// EventTimeout bounds the handling of a single event.
	// Defaults to 30 seconds.
	EventTimeout time.Duration

	// EventBuffer is the capacity of the channel between the event source
	// and the queue. Defaults to 100.
	EventBuffer int
}

// ResourceStatus is the reconcile status of one resource.
type ResourceStatus struct {
	TenantID   string
	ResourceID string

	// LastReconcileTime is when an event for the resource last succeeded.
	LastReconcileTime *time.Time

	// LastPath is the branch taken by the last successful event.
	LastPath Path

	// LastError is the most recent error, if any.
	LastError string

	// RetryCount is the number of redeliveries since the last success.
	RetryCount int

	State ReconcileState
}

// ReconcileState represents the state of a resource's reconciliation.
type ReconcileState string

const (
	// StatePending means an event for the resource is queued.
	StatePending ReconcileState = "Pending"

	// StateReconciling means an event is being handled.
	StateReconciling ReconcileState = "Reconciling"

	// StateSynced means the last event was applied.
	StateSynced ReconcileState = "Synced"

	// StateError means the last attempt failed and a redelivery is scheduled.
	StateError ReconcileState = "Error"

	// StateFailed means the event was dropped after failing permanently or
	// exhausting its retries.
	StateFailed ReconcileState = "Failed"
)
