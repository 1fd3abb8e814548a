package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/reconciler"
	"github.com/giantswarm/agentcatalog/internal/selector"
	"github.com/giantswarm/agentcatalog/internal/store"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

type fakeInventory struct {
	resources []api.Resource
	err       error
	calls     int
}

func (f *fakeInventory) GetResource(ctx context.Context, tenantID, resourceID string) (api.Resource, error) {
	for _, r := range f.resources {
		if r.TenantID == tenantID && r.ResourceID == resourceID {
			return r, nil
		}
	}
	return api.Resource{}, api.NewResourceNotFoundError(tenantID, resourceID)
}

func (f *fakeInventory) FindResourcesMatchingSelector(ctx context.Context, tenantID string, sel map[string]string, method api.SelectorMethod) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var ids []string
	for _, r := range f.resources {
		if r.TenantID == tenantID && selector.New(sel, method).Matches(r.Labels) {
			ids = append(ids, r.ResourceID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type fixture struct {
	ctx   context.Context
	store *store.Store
	inv   *fakeInventory
	svc   *Service
}

func newFixture(t *testing.T, resources ...api.Resource) *fixture {
	t.Helper()

	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	st, err := store.Open(store.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 2,
		Now:      func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Millisecond) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var ids atomic.Int64
	newID := func() string { return fmt.Sprintf("id-%03d", ids.Add(1)) }

	inv := &fakeInventory{resources: resources}
	engine := reconciler.NewEngine(reconciler.EngineConfig{Store: st, Inventory: inv, NewID: newID})
	svc := New(Config{Store: st, Engine: engine, Inventory: inv, NewID: newID})

	return &fixture{ctx: context.Background(), store: st, inv: inv, svc: svc}
}

func (f *fixture) release(t *testing.T, agentType api.AgentType, version string) api.Release {
	t.Helper()
	r, err := f.svc.CreateRelease(f.ctx, ReleaseCreate{
		AgentType: string(agentType), Version: version, URL: "https://example.com/" + version, Exe: "agent",
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) pending(t *testing.T) []api.Notification {
	t.Helper()
	n, err := f.store.PendingNotifications(f.ctx, 100)
	require.NoError(t, err)
	return n
}

func linuxResource(id string) api.Resource {
	return api.Resource{TenantID: "t1", ResourceID: id, Labels: map[string]string{"os": "linux"}, ExecutionAgentID: "envoy"}
}

var linux = map[string]string{"os": "linux"}

func TestCreateRelease(t *testing.T) {
	f := newFixture(t)

	r := f.release(t, api.AgentTypeTelegraf, "1.2.3")
	assert.Equal(t, api.AgentTypeTelegraf, r.AgentType)
	assert.NotEmpty(t, r.ID)

	got, err := f.svc.GetRelease(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Version, got.Version)

	tests := []struct {
		name  string
		in    ReleaseCreate
		check func(error) bool
	}{
		{"unknown agent type", ReleaseCreate{AgentType: "COLLECTD", Version: "1.0.0", URL: "u", Exe: "e"}, api.IsValidation},
		{"bad version", ReleaseCreate{AgentType: "TELEGRAF", Version: "1.0", URL: "u", Exe: "e"}, api.IsValidation},
		{"missing url", ReleaseCreate{AgentType: "TELEGRAF", Version: "1.0.0", Exe: "e"}, api.IsValidation},
		{"duplicate", ReleaseCreate{AgentType: "telegraf", Version: "1.2.3", URL: "other", Exe: "other"}, api.IsConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateRelease(f.ctx, tt.in)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}

	t.Run("same version with different labels is allowed", func(t *testing.T) {
		_, err := f.svc.CreateRelease(f.ctx, ReleaseCreate{
			AgentType: "TELEGRAF", Version: "1.2.3", Labels: map[string]string{"arch": "arm64"}, URL: "u", Exe: "e",
		})
		assert.NoError(t, err)
	})
}

func TestDeleteRelease(t *testing.T) {
	f := newFixture(t)
	r := f.release(t, api.AgentTypeTelegraf, "1.0.0")
	in, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: r.ID, Selector: linux})
	require.NoError(t, err)

	err = f.svc.DeleteRelease(f.ctx, r.ID)
	assert.True(t, api.IsReferentialConflict(err))
	_, err = f.svc.GetRelease(f.ctx, r.ID)
	assert.NoError(t, err, "a referenced release must be left untouched")

	require.NoError(t, f.svc.DeleteInstall(f.ctx, "t1", in.ID))
	require.NoError(t, f.svc.DeleteRelease(f.ctx, r.ID))

	err = f.svc.DeleteRelease(f.ctx, r.ID)
	assert.True(t, api.IsNotFound(err))
}

func TestCreateInstall_BindsMatchingResources(t *testing.T) {
	f := newFixture(t, linuxResource("r1"), linuxResource("r2"),
		api.Resource{TenantID: "t1", ResourceID: "win", Labels: map[string]string{"os": "windows"}})
	r := f.release(t, api.AgentTypeTelegraf, "1.0.0")

	in, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: r.ID, Selector: linux})
	require.NoError(t, err)
	assert.Equal(t, api.SelectorMethodAnd, in.Method)

	for _, id := range []string{"r1", "r2"} {
		b, err := f.svc.GetBindingFor(f.ctx, "t1", id, api.AgentTypeTelegraf)
		require.NoError(t, err)
		assert.Equal(t, in.ID, b.InstallID)
	}
	_, err = f.svc.GetBindingFor(f.ctx, "t1", "win", api.AgentTypeTelegraf)
	assert.True(t, api.IsNotFound(err))

	pending := f.pending(t)
	require.Len(t, pending, 2)
	for _, n := range pending {
		assert.Equal(t, api.OperationUpsert, n.Op)
		assert.Equal(t, in.ID, n.InstallID)
	}
}

func TestCreateInstall_ScenariosBAndC(t *testing.T) {
	f := newFixture(t, linuxResource("r1"))
	v1 := f.release(t, api.AgentTypeTelegraf, "1.0.0")
	v2 := f.release(t, api.AgentTypeTelegraf, "2.0.0")
	v15 := f.release(t, api.AgentTypeTelegraf, "1.5.0")

	x, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: v1.ID, Selector: linux})
	require.NoError(t, err)

	y, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: v2.ID, Selector: linux})
	require.NoError(t, err)

	b, err := f.svc.GetBindingFor(f.ctx, "t1", "r1", api.AgentTypeTelegraf)
	require.NoError(t, err)
	assert.Equal(t, y.ID, b.InstallID)

	pending := f.pending(t)
	require.Len(t, pending, 2)
	assert.Equal(t, x.ID, pending[0].InstallID)
	assert.Equal(t, y.ID, pending[1].InstallID)

	_, err = f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: v15.ID, Selector: linux})
	require.NoError(t, err)

	b, err = f.svc.GetBindingFor(f.ctx, "t1", "r1", api.AgentTypeTelegraf)
	require.NoError(t, err)
	assert.Equal(t, y.ID, b.InstallID)
	assert.Len(t, f.pending(t), 2, "an older install must not produce a notification")
}

func TestCreateInstall_Rejections(t *testing.T) {
	f := newFixture(t, linuxResource("r1"))
	r := f.release(t, api.AgentTypeTelegraf, "1.0.0")
	_, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: r.ID, Selector: linux})
	require.NoError(t, err)
	calls := f.inv.calls

	t.Run("missing release", func(t *testing.T) {
		_, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: "nope", Selector: linux})
		assert.True(t, api.IsNotFound(err))
	})

	t.Run("duplicate selector ignores method", func(t *testing.T) {
		_, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: r.ID, Selector: map[string]string{"os": "linux"}, Method: "OR"})
		assert.True(t, api.IsConflict(err))
	})

	t.Run("bad method", func(t *testing.T) {
		_, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: r.ID, Selector: linux, Method: "XOR"})
		assert.True(t, api.IsValidation(err))
	})

	assert.Equal(t, calls, f.inv.calls, "rejected installs must not query the inventory")

	t.Run("same selector on another tenant is fine", func(t *testing.T) {
		_, err := f.svc.CreateInstall(f.ctx, "t2", InstallCreate{ReleaseID: r.ID, Selector: linux})
		assert.NoError(t, err)
	})
}

func TestCreateInstall_InventoryFailureWritesNothing(t *testing.T) {
	f := newFixture(t, linuxResource("r1"))
	r := f.release(t, api.AgentTypeTelegraf, "1.0.0")
	f.inv.err = errors.New("connection reset")

	_, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: r.ID, Selector: linux})

	require.Error(t, err)
	assert.True(t, api.IsCollaboratorUnavailable(err))
	installs, err := f.svc.ListInstalls(f.ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, installs)
	assert.Empty(t, f.pending(t))
}

func TestDeleteInstall(t *testing.T) {
	f := newFixture(t, linuxResource("r1"), linuxResource("r2"))
	r := f.release(t, api.AgentTypeFilebeat, "7.0.0")
	in, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: r.ID})
	require.NoError(t, err)

	bindings, err := f.svc.ListInstallBindings(f.ctx, "t1", in.ID)
	require.NoError(t, err)
	require.Len(t, bindings, 2)

	t.Run("other tenant sees not found", func(t *testing.T) {
		err := f.svc.DeleteInstall(f.ctx, "t2", in.ID)
		assert.True(t, api.IsNotFound(err))
	})

	require.NoError(t, f.svc.DeleteInstall(f.ctx, "t1", in.ID))

	types, err := f.svc.ListBoundAgentTypes(f.ctx, "t1", "r1")
	require.NoError(t, err)
	assert.Empty(t, types)

	var deletes []api.Notification
	for _, n := range f.pending(t) {
		if n.Op == api.OperationDelete {
			deletes = append(deletes, n)
		}
	}
	require.Len(t, deletes, 2)
	assert.Equal(t, "r1", deletes[0].ResourceID)
	assert.Equal(t, "r2", deletes[1].ResourceID)
	assert.Equal(t, api.AgentTypeFilebeat, deletes[0].AgentType)

	err = f.svc.DeleteInstall(f.ctx, "t1", in.ID)
	assert.True(t, api.IsNotFound(err))
}

func TestGetBindingFor_InvariantViolation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Update(f.ctx, func(tx *store.Tx) error {
		for _, id := range []string{"b1", "b2"} {
			if err := tx.InsertBinding(api.Binding{ID: id, TenantID: "t1", ResourceID: "r1", AgentType: api.AgentTypeTelegraf, InstallID: id}); err != nil {
				return err
			}
		}
		return nil
	}))

	var logs bytes.Buffer
	logging.Init(logging.LevelError, logging.FormatText, &logs)
	t.Cleanup(func() { logging.Init(logging.LevelInfo, logging.FormatText, io.Discard) })

	_, err := f.svc.GetBindingFor(f.ctx, "t1", "r1", api.AgentTypeTelegraf)
	assert.True(t, api.IsInvariantViolation(err))
	assert.Contains(t, logs.String(), "subsystem=Catalog")
	assert.Contains(t, logs.String(), "t1:r1")
}

func TestListBoundAgentTypes(t *testing.T) {
	f := newFixture(t, linuxResource("r1"))
	tel := f.release(t, api.AgentTypeTelegraf, "1.0.0")
	fb := f.release(t, api.AgentTypeFilebeat, "7.0.0")

	_, err := f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: tel.ID, Selector: linux})
	require.NoError(t, err)
	_, err = f.svc.CreateInstall(f.ctx, "t1", InstallCreate{ReleaseID: fb.ID, Selector: map[string]string{"os": "linux", "tier": "web"}, Method: "or"})
	require.NoError(t, err)

	types, err := f.svc.ListBoundAgentTypes(f.ctx, "t1", "r1")
	require.NoError(t, err)
	assert.Equal(t, []api.AgentType{api.AgentTypeFilebeat, api.AgentTypeTelegraf}, types)

	bindings, err := f.svc.ListBindings(f.ctx, "t1", "r1")
	require.NoError(t, err)
	assert.Len(t, bindings, 2)
}
