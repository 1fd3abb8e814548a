package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/giantswarm/agentcatalog/internal/api"
)

const bindingColumns = `id, tenant_id, resource_id, agent_type, install_id, created_at`

// InsertBinding stores a binding. It does not check the one-binding-per-key
// rule; the reconciler is the only writer and enforces it.
func (tx *Tx) InsertBinding(b api.Binding) error {
	if err := tx.writable(); err != nil {
		return err
	}
	err := tx.exec(`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.TenantID, b.ResourceID, string(b.AgentType), b.InstallID, toUnix(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert binding %s: %w", b.ID, err)
	}
	return nil
}

// DeleteBinding removes one binding by ID. Deleting a missing row is not an
// error.
func (tx *Tx) DeleteBinding(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if err := tx.exec(`DELETE FROM bindings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete binding %s: %w", id, err)
	}
	return nil
}

// BindingsForResource returns every binding of a resource ordered by agent
// type then creation.
func (tx *Tx) BindingsForResource(tenantID, resourceID string) ([]api.Binding, error) {
	return tx.listBindings(`SELECT `+bindingColumns+` FROM bindings
		WHERE tenant_id = ? AND resource_id = ? ORDER BY agent_type, created_at, id`, tenantID, resourceID)
}

// BindingsForKey returns the bindings for one (tenant, resource, agent type).
// More than one row means the store is out of invariant.
func (tx *Tx) BindingsForKey(tenantID, resourceID string, agentType api.AgentType) ([]api.Binding, error) {
	return tx.listBindings(`SELECT `+bindingColumns+` FROM bindings
		WHERE tenant_id = ? AND resource_id = ? AND agent_type = ? ORDER BY created_at, id`,
		tenantID, resourceID, string(agentType))
}

// BindingsForInstall returns every binding produced by an install.
func (tx *Tx) BindingsForInstall(installID string) ([]api.Binding, error) {
	return tx.listBindings(`SELECT `+bindingColumns+` FROM bindings
		WHERE install_id = ? ORDER BY resource_id, agent_type, id`, installID)
}

// BoundAgentTypes returns the distinct agent types bound on a resource,
// sorted.
func (tx *Tx) BoundAgentTypes(tenantID, resourceID string) ([]api.AgentType, error) {
	var types []api.AgentType
	err := tx.query(`SELECT DISTINCT agent_type FROM bindings
		WHERE tenant_id = ? AND resource_id = ? ORDER BY agent_type`, func(stmt *sqlite.Stmt) error {
		types = append(types, api.AgentType(stmt.ColumnText(0)))
		return nil
	}, tenantID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("store: bound agent types of %s: %w", api.ResourceKey(tenantID, resourceID), err)
	}
	return types, nil
}

func (tx *Tx) listBindings(query string, args ...any) ([]api.Binding, error) {
	var bindings []api.Binding
	err := tx.query(query, func(stmt *sqlite.Stmt) error {
		bindings = append(bindings, api.Binding{
			ID:         stmt.ColumnText(0),
			TenantID:   stmt.ColumnText(1),
			ResourceID: stmt.ColumnText(2),
			AgentType:  api.AgentType(stmt.ColumnText(3)),
			InstallID:  stmt.ColumnText(4),
			CreatedAt:  fromUnix(stmt.ColumnInt64(5)),
		})
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list bindings: %w", err)
	}
	return bindings, nil
}
