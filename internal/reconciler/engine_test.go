package reconciler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/resolver"
	"github.com/giantswarm/agentcatalog/internal/selector"
	"github.com/giantswarm/agentcatalog/internal/store"
)

type fakeInventory struct {
	mu        sync.Mutex
	resources map[string]api.Resource
	err       error
	lookups   int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{resources: make(map[string]api.Resource)}
}

func (f *fakeInventory) put(r api.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[api.ResourceKey(r.TenantID, r.ResourceID)] = r
}

func (f *fakeInventory) GetResource(ctx context.Context, tenantID, resourceID string) (api.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return api.Resource{}, f.err
	}
	r, ok := f.resources[api.ResourceKey(tenantID, resourceID)]
	if !ok {
		return api.Resource{}, api.NewResourceNotFoundError(tenantID, resourceID)
	}
	return r, nil
}

func (f *fakeInventory) FindResourcesMatchingSelector(ctx context.Context, tenantID string, sel map[string]string, method api.SelectorMethod) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, r := range f.resources {
		if r.TenantID == tenantID && selector.New(sel, method).Matches(r.Labels) {
			ids = append(ids, r.ResourceID)
		}
	}
	return ids, nil
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Store
	inv    *fakeInventory
	engine *Engine
	seq    atomic.Int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	st, err := store.Open(store.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 2,
		Now:      func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Millisecond) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{t: t, ctx: context.Background(), store: st, inv: newFakeInventory()}
	h.engine = NewEngine(EngineConfig{
		Store:     st,
		Inventory: h.inv,
		NewID:     func() string { return fmt.Sprintf("binding-%d", h.seq.Add(1)) },
	})
	return h
}

func (h *harness) release(id string, agentType api.AgentType, version string) {
	h.t.Helper()
	require.NoError(h.t, h.store.Update(h.ctx, func(tx *store.Tx) error {
		return tx.InsertRelease(api.Release{ID: id, AgentType: agentType, Version: version, CreatedAt: tx.Now()})
	}))
}

func (h *harness) install(id, releaseID string, sel map[string]string) resolver.Candidate {
	h.t.Helper()
	var c resolver.Candidate
	require.NoError(h.t, h.store.Update(h.ctx, func(tx *store.Tx) error {
		in := api.Install{ID: id, TenantID: "t1", ReleaseID: releaseID, Selector: sel, Method: api.SelectorMethodAnd, CreatedAt: tx.Now()}
		if err := tx.InsertInstall(in); err != nil {
			return err
		}
		rel, err := tx.GetRelease(releaseID)
		c = resolver.Candidate{Install: in, Release: rel}
		return err
	}))
	return c
}

func (h *harness) resource(id string, labels map[string]string) {
	h.inv.put(api.Resource{TenantID: "t1", ResourceID: id, Labels: labels, ExecutionAgentID: "envoy-1"})
}

func (h *harness) bindings(resourceID string) []api.Binding {
	h.t.Helper()
	var out []api.Binding
	require.NoError(h.t, h.store.View(h.ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.BindingsForResource("t1", resourceID)
		return err
	}))
	return out
}

func (h *harness) pending() int {
	h.t.Helper()
	n, err := h.store.CountPending(h.ctx)
	require.NoError(h.t, err)
	return n
}

func (h *harness) labelsChanged(resourceID string) Outcome {
	h.t.Helper()
	out, err := h.engine.HandleResourceEvent(h.ctx, api.ResourceEvent{TenantID: "t1", ResourceID: resourceID, LabelsChanged: true})
	require.NoError(h.t, err)
	return out
}

func (h *harness) bind(resourceID string, c resolver.Candidate) (api.Notification, bool) {
	h.t.Helper()
	var (
		n  api.Notification
		ok bool
	)
	require.NoError(h.t, h.store.Update(h.ctx, func(tx *store.Tx) error {
		var err error
		n, ok, err = h.engine.BindCandidate(tx, resourceID, c)
		return err
	}))
	return n, ok
}

var linux = map[string]string{"os": "linux"}

func TestScenarioA_LabelsChangedCreatesBinding(t *testing.T) {
	h := newHarness(t)
	h.release("tel-1.0.0", api.AgentTypeTelegraf, "1.0.0")
	h.install("X", "tel-1.0.0", linux)
	h.resource("r1", linux)

	out := h.labelsChanged("r1")

	assert.Equal(t, PathConverge, out.Path)
	require.Len(t, out.Notifications, 1)
	n := out.Notifications[0]
	assert.Equal(t, api.OperationUpsert, n.Op)
	assert.Equal(t, api.AgentTypeTelegraf, n.AgentType)
	assert.Equal(t, "X", n.InstallID)
	assert.Equal(t, "t1:r1", n.Key())

	bindings := h.bindings("r1")
	require.Len(t, bindings, 1)
	assert.Equal(t, "X", bindings[0].InstallID)
	assert.Equal(t, 1, h.pending())
}

func TestScenarioB_NewerInstallReplacesBinding(t *testing.T) {
	h := newHarness(t)
	h.release("tel-1.0.0", api.AgentTypeTelegraf, "1.0.0")
	h.release("tel-2.0.0", api.AgentTypeTelegraf, "2.0.0")
	h.install("X", "tel-1.0.0", linux)
	h.resource("r1", linux)
	h.labelsChanged("r1")

	y := h.install("Y", "tel-2.0.0", linux)
	n, ok := h.bind("r1", y)

	require.True(t, ok)
	assert.Equal(t, api.OperationUpsert, n.Op)
	assert.Equal(t, "Y", n.InstallID)

	bindings := h.bindings("r1")
	require.Len(t, bindings, 1)
	assert.Equal(t, "Y", bindings[0].InstallID)
	assert.Equal(t, 2, h.pending())
}

func TestScenarioC_OlderInstallLeavesBindingAlone(t *testing.T) {
	h := newHarness(t)
	h.release("tel-2.0.0", api.AgentTypeTelegraf, "2.0.0")
	h.release("tel-1.5.0", api.AgentTypeTelegraf, "1.5.0")
	h.install("Y", "tel-2.0.0", linux)
	h.resource("r1", linux)
	h.labelsChanged("r1")
	before := h.bindings("r1")

	z := h.install("Z", "tel-1.5.0", linux)
	_, ok := h.bind("r1", z)

	assert.False(t, ok)
	assert.Equal(t, before, h.bindings("r1"))
	assert.Equal(t, 1, h.pending())
}

func TestReconcileCandidate_EqualVersionDoesNotWin(t *testing.T) {
	h := newHarness(t)
	h.release("tel-a", api.AgentTypeTelegraf, "1.0.0")
	h.release("tel-b", api.AgentTypeTelegraf, "1.0.0+rebuild")
	h.install("A", "tel-a", linux)
	h.resource("r1", linux)
	h.labelsChanged("r1")

	b := h.install("B", "tel-b", linux)
	_, ok := h.bind("r1", b)

	assert.False(t, ok)
	bindings := h.bindings("r1")
	require.Len(t, bindings, 1)
	assert.Equal(t, "A", bindings[0].InstallID)
}

func TestScenarioD_DeletedResourceUnbindsEverything(t *testing.T) {
	h := newHarness(t)
	h.release("tel", api.AgentTypeTelegraf, "1.0.0")
	h.release("fb", api.AgentTypeFilebeat, "7.0.0")
	h.install("T", "tel", linux)
	h.install("F", "fb", map[string]string{})
	h.resource("r1", linux)
	h.labelsChanged("r1")
	require.Len(t, h.bindings("r1"), 2)

	out, err := h.engine.HandleResourceEvent(h.ctx, api.ResourceEvent{TenantID: "t1", ResourceID: "r1", Deleted: true})
	require.NoError(t, err)

	assert.Equal(t, PathUnbindAll, out.Path)
	require.Len(t, out.Notifications, 2)
	assert.Equal(t, api.AgentTypeFilebeat, out.Notifications[0].AgentType)
	assert.Equal(t, api.AgentTypeTelegraf, out.Notifications[1].AgentType)
	for _, n := range out.Notifications {
		assert.Equal(t, api.OperationDelete, n.Op)
	}
	assert.Empty(t, h.bindings("r1"))
}

func TestDeletedWinsOverOtherFlags(t *testing.T) {
	h := newHarness(t)
	h.release("tel", api.AgentTypeTelegraf, "1.0.0")
	h.install("T", "tel", linux)
	h.resource("r1", linux)
	h.labelsChanged("r1")
	h.inv.err = errors.New("inventory must not be called")

	out, err := h.engine.HandleResourceEvent(h.ctx, api.ResourceEvent{
		TenantID: "t1", ResourceID: "r1", Deleted: true, LabelsChanged: true, ReattachedExecutionAgentID: "envoy-2",
	})
	require.NoError(t, err)
	assert.Equal(t, PathUnbindAll, out.Path)
	assert.Empty(t, h.bindings("r1"))
}

func TestScenarioE_NoLongerMatchingRemovesBinding(t *testing.T) {
	h := newHarness(t)
	h.release("tel", api.AgentTypeTelegraf, "1.0.0")
	h.install("T", "tel", linux)
	h.resource("r1", linux)
	h.labelsChanged("r1")

	h.resource("r1", map[string]string{"os": "windows"})
	out := h.labelsChanged("r1")

	require.Len(t, out.Notifications, 1)
	assert.Equal(t, api.OperationDelete, out.Notifications[0].Op)
	assert.Equal(t, api.AgentTypeTelegraf, out.Notifications[0].AgentType)
	assert.Equal(t, "T", out.Notifications[0].InstallID)
	assert.Empty(t, h.bindings("r1"))
}

func TestConverge_SwitchesToHigherVersion(t *testing.T) {
	h := newHarness(t)
	h.release("tel-1", api.AgentTypeTelegraf, "1.0.0")
	h.release("tel-2", api.AgentTypeTelegraf, "2.0.0")
	h.install("old", "tel-1", linux)
	h.install("new", "tel-2", map[string]string{"os": "linux", "env": "prod"})
	h.resource("r1", linux)
	h.labelsChanged("r1")
	require.Equal(t, "old", h.bindings("r1")[0].InstallID)

	h.resource("r1", map[string]string{"os": "linux", "env": "prod"})
	out := h.labelsChanged("r1")

	require.Len(t, out.Notifications, 1)
	assert.Equal(t, "new", out.Notifications[0].InstallID)
	bindings := h.bindings("r1")
	require.Len(t, bindings, 1)
	assert.Equal(t, "new", bindings[0].InstallID)
}

func TestLabelsChanged_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.release("tel", api.AgentTypeTelegraf, "1.0.0")
	h.install("T", "tel", linux)
	h.resource("r1", linux)

	first := h.labelsChanged("r1")
	before := h.bindings("r1")
	second := h.labelsChanged("r1")

	assert.Len(t, first.Notifications, 1)
	assert.Empty(t, second.Notifications)
	assert.Equal(t, before, h.bindings("r1"))
	assert.Equal(t, 1, h.pending())
}

func TestReattach_ReplaysWithoutMutation(t *testing.T) {
	h := newHarness(t)
	h.release("tel", api.AgentTypeTelegraf, "1.0.0")
	h.release("fb", api.AgentTypeFilebeat, "7.0.0")
	h.install("T", "tel", linux)
	h.install("F", "fb", linux)
	h.resource("r1", linux)
	h.labelsChanged("r1")
	before := h.bindings("r1")
	lookups := h.inv.lookups

	out, err := h.engine.HandleResourceEvent(h.ctx, api.ResourceEvent{TenantID: "t1", ResourceID: "r1", ReattachedExecutionAgentID: "envoy-2"})
	require.NoError(t, err)

	assert.Equal(t, PathReplay, out.Path)
	require.Len(t, out.Notifications, 2)
	for _, n := range out.Notifications {
		assert.Equal(t, api.OperationUpsert, n.Op)
	}
	assert.Equal(t, before, h.bindings("r1"))
	assert.Equal(t, lookups, h.inv.lookups, "replay must not consult the inventory")
}

func TestReattachWithLabelChange_ReannouncesUnchangedBinding(t *testing.T) {
	h := newHarness(t)
	h.release("tel", api.AgentTypeTelegraf, "1.0.0")
	h.install("T", "tel", linux)
	h.resource("r1", linux)
	h.labelsChanged("r1")
	before := h.bindings("r1")

	out, err := h.engine.HandleResourceEvent(h.ctx, api.ResourceEvent{
		TenantID: "t1", ResourceID: "r1", LabelsChanged: true, ReattachedExecutionAgentID: "envoy-2",
	})
	require.NoError(t, err)

	assert.Equal(t, PathConverge, out.Path)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, api.OperationUpsert, out.Notifications[0].Op)
	assert.Equal(t, before, h.bindings("r1"))
}

func TestHandleResourceEvent_NoOps(t *testing.T) {
	h := newHarness(t)
	h.release("tel", api.AgentTypeTelegraf, "1.0.0")
	h.install("T", "tel", linux)
	h.inv.put(api.Resource{TenantID: "t1", ResourceID: "detached", Labels: linux})

	tests := []struct {
		name string
		ev   api.ResourceEvent
		want Path
	}{
		{"unknown resource", api.ResourceEvent{TenantID: "t1", ResourceID: "ghost", LabelsChanged: true}, PathResourceNotFound},
		{"no execution agent", api.ResourceEvent{TenantID: "t1", ResourceID: "detached", LabelsChanged: true}, PathNoExecutionAgent},
		{"no relevant change", api.ResourceEvent{TenantID: "t1", ResourceID: "detached"}, PathIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.engine.HandleResourceEvent(h.ctx, tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Path)
			assert.Empty(t, out.Notifications)
		})
	}
	assert.Equal(t, 0, h.pending())
	assert.Empty(t, h.bindings("detached"))
}

func TestHandleResourceEvent_InventoryFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.release("tel", api.AgentTypeTelegraf, "1.0.0")
	h.install("T", "tel", linux)
	h.resource("r1", linux)
	h.inv.err = errors.New("connection refused")

	_, err := h.engine.HandleResourceEvent(h.ctx, api.ResourceEvent{TenantID: "t1", ResourceID: "r1", LabelsChanged: true})

	require.Error(t, err)
	assert.True(t, api.IsCollaboratorUnavailable(err))
	assert.Empty(t, h.bindings("r1"))
	assert.Equal(t, 0, h.pending())
}

func TestConverge_CleansUpLegacyDuplicates(t *testing.T) {
	h := newHarness(t)
	h.release("tel-1", api.AgentTypeTelegraf, "1.0.0")
	h.release("tel-2", api.AgentTypeTelegraf, "2.0.0")
	old := h.install("old", "tel-1", linux)
	newer := h.install("new", "tel-2", linux)
	h.resource("r1", linux)

	require.NoError(t, h.store.Update(h.ctx, func(tx *store.Tx) error {
		for i, c := range []resolver.Candidate{old, newer, newer} {
			err := tx.InsertBinding(api.Binding{
				ID: fmt.Sprintf("legacy-%d", i), TenantID: "t1", ResourceID: "r1",
				AgentType: api.AgentTypeTelegraf, InstallID: c.Install.ID, CreatedAt: tx.Now(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	out := h.labelsChanged("r1")

	bindings := h.bindings("r1")
	require.Len(t, bindings, 1)
	assert.Equal(t, "new", bindings[0].InstallID)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, api.OperationUpsert, out.Notifications[0].Op)
}

func TestReconcileCandidate_TrimsDuplicatesWhenLosing(t *testing.T) {
	h := newHarness(t)
	h.release("tel-1", api.AgentTypeTelegraf, "1.0.0")
	h.release("tel-3", api.AgentTypeTelegraf, "3.0.0")
	h.release("tel-2", api.AgentTypeTelegraf, "2.0.0")
	one := h.install("one", "tel-1", linux)
	three := h.install("three", "tel-3", linux)
	two := h.install("two", "tel-2", linux)

	require.NoError(t, h.store.Update(h.ctx, func(tx *store.Tx) error {
		for _, c := range []resolver.Candidate{one, three} {
			err := tx.InsertBinding(api.Binding{
				ID: "b-" + c.Install.ID, TenantID: "t1", ResourceID: "r1",
				AgentType: api.AgentTypeTelegraf, InstallID: c.Install.ID, CreatedAt: tx.Now(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	_, ok := h.bind("r1", two)

	assert.False(t, ok)
	bindings := h.bindings("r1")
	require.Len(t, bindings, 1)
	assert.Equal(t, "three", bindings[0].InstallID)
}

func TestConverge_AtMostOneBindingUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	h.release("tel-1", api.AgentTypeTelegraf, "1.0.0")
	h.release("tel-2", api.AgentTypeTelegraf, "2.0.0")
	h.install("a", "tel-1", linux)
	h.resource("r1", linux)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.HandleResourceEvent(h.ctx, api.ResourceEvent{TenantID: "t1", ResourceID: "r1", LabelsChanged: true})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, h.bindings("r1"), 1)
	assert.Equal(t, 1, h.pending())
}
