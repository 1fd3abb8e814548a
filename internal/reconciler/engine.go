package reconciler

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/inventory"
	"github.com/giantswarm/agentcatalog/internal/resolver"
	"github.com/giantswarm/agentcatalog/internal/semver"
	"github.com/giantswarm/agentcatalog/internal/store"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// Path names the branch HandleResourceEvent took for an event.
type Path string

const (
	// PathUnbindAll removed every binding of a deleted resource.
	PathUnbindAll Path = "UnbindAll"

	// PathReplay re-announced the bindings of a reattached resource.
	PathReplay Path = "Replay"

	// PathConverge resolved and converged the bindings of a changed resource.
	PathConverge Path = "Converge"

	// PathResourceNotFound means the inventory no longer knows the resource.
	PathResourceNotFound Path = "ResourceNotFound"

	// PathNoExecutionAgent means the resource is not connected through an
	// execution agent, so bindings do not apply.
	PathNoExecutionAgent Path = "NoExecutionAgent"

	// PathIgnored means the event carried no relevant change.
	PathIgnored Path = "Ignored"
)

// Outcome reports what handling one event did.
type Outcome struct {
	Path          Path
	Notifications []api.Notification
}

// EngineConfig holds the collaborators of an Engine.
type EngineConfig struct {
	Store     *store.Store
	Inventory inventory.Inventory

	// InventoryTimeout bounds every inventory call. Defaults to 10s.
	InventoryTimeout time.Duration

	// NewID generates binding IDs. Defaults to random UUIDs.
	NewID func() string
}

// Engine converges the binding table for one resource at a time. Every
// read-decide-write sequence runs inside one store transaction together
// with the notifications it derives.
type Engine struct {
	store            *store.Store
	inventory        inventory.Inventory
	inventoryTimeout time.Duration
	newID            func() string
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.InventoryTimeout <= 0 {
		cfg.InventoryTimeout = 10 * time.Second
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Engine{
		store:            cfg.Store,
		inventory:        cfg.Inventory,
		inventoryTimeout: cfg.InventoryTimeout,
		newID:            cfg.NewID,
	}
}

// HandleResourceEvent applies one resource lifecycle event. Deleted is
// checked first, then a reattach without label change, then a label
// change. Any other event is a no-op.
//
// Inventory failures abort the attempt before any mutation and are
// reported as api.CollaboratorUnavailableError. The engine never retries.
func (e *Engine) HandleResourceEvent(ctx context.Context, ev api.ResourceEvent) (Outcome, error) {
	logging.Debug("Engine", "Handling event for %s (deleted=%t labelsChanged=%t reattached=%t)",
		ev.Key(), ev.Deleted, ev.LabelsChanged, ev.Reattached())

	switch {
	case ev.Deleted:
		return e.unbindAll(ctx, ev.TenantID, ev.ResourceID)
	case !ev.LabelsChanged && ev.Reattached():
		return e.replay(ctx, ev.TenantID, ev.ResourceID)
	case ev.LabelsChanged:
		return e.converge(ctx, ev)
	default:
		logging.Debug("Engine", "Ignoring event for %s with no relevant change", ev.Key())
		return Outcome{Path: PathIgnored}, nil
	}
}

func (e *Engine) unbindAll(ctx context.Context, tenantID, resourceID string) (Outcome, error) {
	out := Outcome{Path: PathUnbindAll}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		bindings, err := tx.BindingsForResource(tenantID, resourceID)
		if err != nil {
			return err
		}

		removed := make(map[api.AgentType]string)
		for _, b := range bindings {
			if err := tx.DeleteBinding(b.ID); err != nil {
				return err
			}
			if _, seen := removed[b.AgentType]; !seen {
				removed[b.AgentType] = b.InstallID
			}
		}

		out.Notifications, err = enqueueAll(tx, tenantID, resourceID, api.OperationDelete, removed)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("unbind deleted resource %s: %w", api.ResourceKey(tenantID, resourceID), err)
	}

	logging.Info("Engine", "Unbound deleted resource %s (%d agent types)",
		api.ResourceKey(tenantID, resourceID), len(out.Notifications))
	return out, nil
}

func (e *Engine) replay(ctx context.Context, tenantID, resourceID string) (Outcome, error) {
	out := Outcome{Path: PathReplay}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		bindings, err := tx.BindingsForResource(tenantID, resourceID)
		if err != nil {
			return err
		}

		bound := make(map[api.AgentType]string)
		for _, b := range bindings {
			if _, seen := bound[b.AgentType]; !seen {
				bound[b.AgentType] = b.InstallID
			}
		}

		out.Notifications, err = enqueueAll(tx, tenantID, resourceID, api.OperationUpsert, bound)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("replay bindings of %s: %w", api.ResourceKey(tenantID, resourceID), err)
	}

	logging.Info("Engine", "Replayed %d bindings to reattached resource %s",
		len(out.Notifications), api.ResourceKey(tenantID, resourceID))
	return out, nil
}

func (e *Engine) converge(ctx context.Context, ev api.ResourceEvent) (Outcome, error) {
	resource, err := e.lookupResource(ctx, ev.TenantID, ev.ResourceID)
	if api.IsNotFound(err) {
		logging.Warn("Engine", "Unable to locate resource for event on %s", ev.Key())
		return Outcome{Path: PathResourceNotFound}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if !resource.HasExecutionAgent() {
		logging.Debug("Engine", "Ignoring event on %s since resource has no execution agent", ev.Key())
		return Outcome{Path: PathNoExecutionAgent}, nil
	}

	out := Outcome{Path: PathConverge}
	err = e.store.Update(ctx, func(tx *store.Tx) error {
		desired, err := resolver.Resolve(ctx, tx, ev.TenantID, resource.Labels)
		if err != nil {
			return err
		}
		out.Notifications, err = e.Converge(tx, ev.TenantID, ev.ResourceID, desired, ev.Reattached())
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("converge bindings of %s: %w", ev.Key(), err)
	}

	logging.Info("Engine", "Converged %s (%d notifications)", ev.Key(), len(out.Notifications))
	return out, nil
}

func (e *Engine) lookupResource(ctx context.Context, tenantID, resourceID string) (api.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, e.inventoryTimeout)
	defer cancel()

	resource, err := e.inventory.GetResource(ctx, tenantID, resourceID)
	if err != nil {
		if api.IsNotFound(err) {
			return api.Resource{}, err
		}
		return api.Resource{}, api.NewInventoryUnavailableError("getResource", err)
	}
	return resource, nil
}

// Converge brings the bindings of one resource in line with desired and
// enqueues the minimal notification set in tx. Agent types bound but no
// longer desired are removed with one DELETE each. A desired install that
// is already the sole binding is left alone and only re-announced when
// reattached is set. Any other state is replaced by exactly one binding to
// the desired install and one UPSERT.
func (e *Engine) Converge(tx *store.Tx, tenantID, resourceID string, desired map[api.AgentType]resolver.Candidate, reattached bool) ([]api.Notification, error) {
	current, err := tx.BindingsForResource(tenantID, resourceID)
	if err != nil {
		return nil, err
	}

	var notifications []api.Notification

	stale := make(map[api.AgentType]string)
	for _, b := range current {
		if _, wanted := desired[b.AgentType]; wanted {
			continue
		}
		if err := tx.DeleteBinding(b.ID); err != nil {
			return nil, err
		}
		if _, seen := stale[b.AgentType]; !seen {
			stale[b.AgentType] = b.InstallID
		}
	}
	deletes, err := enqueueAll(tx, tenantID, resourceID, api.OperationDelete, stale)
	if err != nil {
		return nil, err
	}
	notifications = append(notifications, deletes...)

	for _, agentType := range slices.Sorted(maps.Keys(desired)) {
		n, changed, err := e.upsert(tx, tenantID, resourceID, desired[agentType], reattached)
		if err != nil {
			return nil, err
		}
		if changed {
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

func (e *Engine) upsert(tx *store.Tx, tenantID, resourceID string, want resolver.Candidate, reattached bool) (api.Notification, bool, error) {
	agentType := want.AgentType()
	existing, err := tx.BindingsForKey(tenantID, resourceID, agentType)
	if err != nil {
		return api.Notification{}, false, err
	}

	if len(existing) == 1 && existing[0].InstallID == want.Install.ID {
		if !reattached {
			return api.Notification{}, false, nil
		}
		n, err := enqueue(tx, tenantID, resourceID, agentType, api.OperationUpsert, want.Install.ID)
		return n, err == nil, err
	}

	kept := false
	for _, b := range existing {
		if b.InstallID == want.Install.ID && !kept {
			kept = true
			continue
		}
		if err := tx.DeleteBinding(b.ID); err != nil {
			return api.Notification{}, false, err
		}
	}
	if !kept {
		if err := e.insertBinding(tx, tenantID, resourceID, want); err != nil {
			return api.Notification{}, false, err
		}
	}

	n, err := enqueue(tx, tenantID, resourceID, agentType, api.OperationUpsert, want.Install.ID)
	return n, err == nil, err
}

// ReconcileCandidate decides whether candidate should be bound to the
// resource given the bindings that already exist for its agent type. It
// returns true, after deleting every competitor, iff the candidate's
// version is strictly greater than every competitor's. Otherwise it returns
// false and, when several competitors exist, deletes all but the best one.
// The caller creates the binding when true is returned.
func (e *Engine) ReconcileCandidate(tx *store.Tx, resourceID string, candidate resolver.Candidate) (bool, error) {
	competitors, err := tx.BindingsForKey(candidate.Install.TenantID, resourceID, candidate.AgentType())
	if err != nil {
		return false, err
	}
	if len(competitors) == 0 {
		return true, nil
	}

	ranked, err := rankBindings(tx, competitors)
	if err != nil {
		return false, err
	}

	best := ranked[0]
	wins := semver.Compare(candidate.Release.Version, best.candidate.Release.Version) > 0

	doomed := ranked[1:]
	if wins {
		doomed = ranked
	}
	for _, r := range doomed {
		if err := tx.DeleteBinding(r.binding.ID); err != nil {
			return false, err
		}
	}

	if len(ranked) > 1 {
		logging.Warn("Engine", "Cleaned up %d duplicate bindings of %s on %s",
			len(ranked)-1, candidate.AgentType(), api.ResourceKey(candidate.Install.TenantID, resourceID))
	}
	return wins, nil
}

// BindCandidate runs ReconcileCandidate and, when the candidate wins,
// creates its binding and enqueues one UPSERT.
func (e *Engine) BindCandidate(tx *store.Tx, resourceID string, candidate resolver.Candidate) (api.Notification, bool, error) {
	wins, err := e.ReconcileCandidate(tx, resourceID, candidate)
	if err != nil || !wins {
		return api.Notification{}, false, err
	}

	tenantID := candidate.Install.TenantID
	if err := e.insertBinding(tx, tenantID, resourceID, candidate); err != nil {
		return api.Notification{}, false, err
	}
	n, err := enqueue(tx, tenantID, resourceID, candidate.AgentType(), api.OperationUpsert, candidate.Install.ID)
	if err != nil {
		return api.Notification{}, false, err
	}
	return n, true, nil
}

func (e *Engine) insertBinding(tx *store.Tx, tenantID, resourceID string, c resolver.Candidate) error {
	return tx.InsertBinding(api.Binding{
		ID:         e.newID(),
		TenantID:   tenantID,
		ResourceID: resourceID,
		AgentType:  c.AgentType(),
		InstallID:  c.Install.ID,
		CreatedAt:  tx.Now(),
	})
}

type rankedBinding struct {
	binding   api.Binding
	candidate resolver.Candidate
}

// rankBindings orders bindings best first. A binding whose install or
// release has gone missing ranks below every resolvable one.
func rankBindings(tx *store.Tx, bindings []api.Binding) ([]rankedBinding, error) {
	ranked := make([]rankedBinding, 0, len(bindings))
	for _, b := range bindings {
		c, err := candidateFor(tx, b)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, rankedBinding{binding: b, candidate: c})
	}
	slices.SortStableFunc(ranked, func(a, b rankedBinding) int {
		switch {
		case resolver.Better(a.candidate, b.candidate):
			return -1
		case resolver.Better(b.candidate, a.candidate):
			return 1
		}
		return 0
	})
	return ranked, nil
}

func candidateFor(tx *store.Tx, b api.Binding) (resolver.Candidate, error) {
	c := resolver.Candidate{Install: api.Install{ID: b.InstallID, CreatedAt: b.CreatedAt}}

	in, err := tx.GetInstall(b.InstallID)
	if api.IsNotFound(err) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	c.Install = in

	rel, err := tx.GetRelease(in.ReleaseID)
	if api.IsNotFound(err) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	c.Release = rel
	return c, nil
}

func enqueue(tx *store.Tx, tenantID, resourceID string, agentType api.AgentType, op api.Operation, installID string) (api.Notification, error) {
	return tx.Enqueue(api.Notification{
		TenantID:   tenantID,
		ResourceID: resourceID,
		AgentType:  agentType,
		Op:         op,
		InstallID:  installID,
	})
}

// enqueueAll enqueues one notification per agent type in sorted order.
func enqueueAll(tx *store.Tx, tenantID, resourceID string, op api.Operation, installs map[api.AgentType]string) ([]api.Notification, error) {
	out := make([]api.Notification, 0, len(installs))
	for _, agentType := range slices.Sorted(maps.Keys(installs)) {
		n, err := enqueue(tx, tenantID, resourceID, agentType, op, installs[agentType])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
