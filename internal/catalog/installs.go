package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/resolver"
	"github.com/giantswarm/agentcatalog/internal/selector"
	"github.com/giantswarm/agentcatalog/internal/store"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// InstallCreate describes a new install.
type InstallCreate struct {
	ReleaseID string
	Selector  map[string]string

	// Method is AND or OR. Empty means AND.
	Method string
}

// CreateInstall declares an install and binds it to every matching
// resource where it beats the current binding. It fails with NotFound when
// the release is missing, Conflict when the tenant already has an install
// of the release with the same selector, and CollaboratorUnavailable when
// the inventory cannot be queried. Nothing is written in any of those
// cases.
func (s *Service) CreateInstall(ctx context.Context, tenantID string, in InstallCreate) (api.Install, error) {
	if tenantID == "" {
		return api.Install{}, api.NewValidationError("tenantId", "must not be empty")
	}
	method, err := selector.ParseMethod(in.Method)
	if err != nil {
		return api.Install{}, err
	}
	sel := selector.New(in.Selector, method)
	if err := sel.Validate(); err != nil {
		return api.Install{}, err
	}

	if err := s.store.View(ctx, func(tx *store.Tx) error {
		return checkInstallable(tx, tenantID, in.ReleaseID, sel)
	}); err != nil {
		return api.Install{}, err
	}

	resourceIDs, err := s.findResources(ctx, tenantID, sel)
	if err != nil {
		return api.Install{}, err
	}

	var (
		created api.Install
		bound   int
	)
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		// Another writer may have raced us between the checks and here.
		if err := checkInstallable(tx, tenantID, in.ReleaseID, sel); err != nil {
			return err
		}
		release, err := tx.GetRelease(in.ReleaseID)
		if err != nil {
			return err
		}

		selectorLabels := maps.Clone(in.Selector)
		if selectorLabels == nil {
			selectorLabels = map[string]string{}
		}
		created = api.Install{
			ID:        s.newID(),
			TenantID:  tenantID,
			ReleaseID: release.ID,
			Selector:  selectorLabels,
			Method:    method,
			CreatedAt: tx.Now(),
		}
		if err := tx.InsertInstall(created); err != nil {
			return err
		}

		candidate := resolver.Candidate{Install: created, Release: release}
		for _, resourceID := range resourceIDs {
			_, ok, err := s.engine.BindCandidate(tx, resourceID, candidate)
			if err != nil {
				return fmt.Errorf("bind install %s to %s: %w", created.ID, resourceID, err)
			}
			if ok {
				bound++
			}
		}
		return nil
	})
	if err != nil {
		return api.Install{}, err
	}

	logging.Info("Catalog", "Created install %s for tenant %s with selector %s (%d of %d resources bound)",
		created.ID, tenantID, sel, bound, len(resourceIDs))
	return created, nil
}

func checkInstallable(tx *store.Tx, tenantID, releaseID string, sel selector.Selector) error {
	if _, err := tx.GetRelease(releaseID); err != nil {
		return err
	}
	existing, err := tx.InstallsForRelease(tenantID, releaseID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if selector.FromInstall(other).Equal(sel) {
			return api.NewConflictError("install",
				fmt.Sprintf("install %s of release %s already uses selector %s", other.ID, releaseID, sel.Labels))
		}
	}
	return nil
}

func (s *Service) findResources(ctx context.Context, tenantID string, sel selector.Selector) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.inventoryTimeout)
	defer cancel()

	ids, err := s.inventory.FindResourcesMatchingSelector(ctx, tenantID, sel.Labels, sel.Method)
	if err != nil {
		return nil, api.NewInventoryUnavailableError("findResourcesMatchingSelector", err)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// DeleteInstall removes an install and all of its bindings, announcing one
// DELETE per affected resource. Installs of other tenants are reported as
// not found.
func (s *Service) DeleteInstall(ctx context.Context, tenantID, installID string) error {
	var affected []string
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		install, err := getTenantInstall(tx, tenantID, installID)
		if err != nil {
			return err
		}

		bindings, err := tx.BindingsForInstall(install.ID)
		if err != nil {
			return err
		}

		agentTypes := make(map[string]api.AgentType)
		for _, b := range bindings {
			if err := tx.DeleteBinding(b.ID); err != nil {
				return err
			}
			if _, seen := agentTypes[b.ResourceID]; !seen {
				agentTypes[b.ResourceID] = b.AgentType
			}
		}
		if err := tx.DeleteInstall(install.ID); err != nil {
			return err
		}

		affected = slices.Sorted(maps.Keys(agentTypes))
		for _, resourceID := range affected {
			_, err := tx.Enqueue(api.Notification{
				TenantID:   tenantID,
				ResourceID: resourceID,
				AgentType:  agentTypes[resourceID],
				Op:         api.OperationDelete,
				InstallID:  install.ID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Info("Catalog", "Deleted install %s for tenant %s (%d resources unbound)", installID, tenantID, len(affected))
	return nil
}

// GetInstall returns one of the tenant's installs.
func (s *Service) GetInstall(ctx context.Context, tenantID, installID string) (api.Install, error) {
	var install api.Install
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		install, err = getTenantInstall(tx, tenantID, installID)
		return err
	})
	return install, err
}

// ListInstalls returns the tenant's installs in creation order.
func (s *Service) ListInstalls(ctx context.Context, tenantID string) ([]api.Install, error) {
	var installs []api.Install
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		installs, err = tx.ListInstalls(tenantID)
		return err
	})
	return installs, err
}

func getTenantInstall(tx *store.Tx, tenantID, installID string) (api.Install, error) {
	install, err := tx.GetInstall(installID)
	if err != nil {
		return api.Install{}, err
	}
	if install.TenantID != tenantID {
		return api.Install{}, api.NewNotFoundErrorWithMessage("install", installID,
			fmt.Sprintf("no install %s on tenant %s", installID, tenantID))
	}
	return install, nil
}
