package catalog

import (
	"context"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/store"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// GetBindingFor returns the binding of one agent type on a resource. More
// than one stored row is reported as an invariant violation instead of
// picking one.
func (s *Service) GetBindingFor(ctx context.Context, tenantID, resourceID string, agentType api.AgentType) (api.Binding, error) {
	var binding api.Binding
	err := s.store.View(ctx, func(tx *store.Tx) error {
		bindings, err := tx.BindingsForKey(tenantID, resourceID, agentType)
		if err != nil {
			return err
		}
		switch len(bindings) {
		case 0:
			return api.NewNotFoundErrorWithMessage("binding", api.ResourceKey(tenantID, resourceID),
				"no "+string(agentType)+" binding for "+api.ResourceKey(tenantID, resourceID))
		case 1:
			binding = bindings[0]
			return nil
		default:
			return &api.InvariantViolationError{
				Key:   api.ResourceKey(tenantID, resourceID) + "/" + string(agentType),
				Count: len(bindings),
			}
		}
	})
	if api.IsInvariantViolation(err) {
		logging.Error("Catalog", err, "Binding table inconsistent for %s/%s", api.ResourceKey(tenantID, resourceID), agentType)
	}
	return binding, err
}

// ListBoundAgentTypes returns the distinct agent types bound on a
// resource, sorted.
func (s *Service) ListBoundAgentTypes(ctx context.Context, tenantID, resourceID string) ([]api.AgentType, error) {
	var types []api.AgentType
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		types, err = tx.BoundAgentTypes(tenantID, resourceID)
		return err
	})
	return types, err
}

// ListBindings returns every binding of a resource.
func (s *Service) ListBindings(ctx context.Context, tenantID, resourceID string) ([]api.Binding, error) {
	var bindings []api.Binding
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		bindings, err = tx.BindingsForResource(tenantID, resourceID)
		return err
	})
	return bindings, err
}

// ListInstallBindings returns the bindings an install of the tenant holds.
func (s *Service) ListInstallBindings(ctx context.Context, tenantID, installID string) ([]api.Binding, error) {
	var bindings []api.Binding
	err := s.store.View(ctx, func(tx *store.Tx) error {
		if _, err := getTenantInstall(tx, tenantID, installID); err != nil {
			return err
		}
		var err error
		bindings, err = tx.BindingsForInstall(installID)
		return err
	})
	return bindings, err
}
