package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/semver"
	"github.com/giantswarm/agentcatalog/internal/store"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// ReleaseCreate describes a new release.
type ReleaseCreate struct {
	AgentType string
	Version   string
	Labels    map[string]string
	URL       string
	Exe       string
}

// CreateRelease validates and stores a release. A release with the same
// agent type, version and labels already existing is a conflict.
func (s *Service) CreateRelease(ctx context.Context, in ReleaseCreate) (api.Release, error) {
	agentType, err := api.ParseAgentType(in.AgentType)
	if err != nil {
		return api.Release{}, err
	}
	if _, err := semver.Parse(in.Version); err != nil {
		return api.Release{}, api.NewValidationError("version", err.Error())
	}
	if strings.TrimSpace(in.URL) == "" {
		return api.Release{}, api.NewValidationError("url", "must not be empty")
	}
	if strings.TrimSpace(in.Exe) == "" {
		return api.Release{}, api.NewValidationError("exe", "must not be empty")
	}

	var created api.Release
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		if _, found, err := tx.FindRelease(agentType, in.Version, in.Labels); err != nil {
			return err
		} else if found {
			return api.NewConflictError("release",
				fmt.Sprintf("%s %s with the same labels already exists", agentType, in.Version))
		}

		created = api.Release{
			ID:        s.newID(),
			AgentType: agentType,
			Version:   in.Version,
			Labels:    in.Labels,
			URL:       in.URL,
			Exe:       in.Exe,
			CreatedAt: tx.Now(),
		}
		if created.Labels == nil {
			created.Labels = map[string]string{}
		}
		return tx.InsertRelease(created)
	})
	if err != nil {
		return api.Release{}, err
	}

	logging.Info("Catalog", "Created release %s (%s %s)", created.ID, created.AgentType, created.Version)
	return created, nil
}

// GetRelease returns one release.
func (s *Service) GetRelease(ctx context.Context, id string) (api.Release, error) {
	var release api.Release
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		release, err = tx.GetRelease(id)
		return err
	})
	return release, err
}

// ListReleases returns every release.
func (s *Service) ListReleases(ctx context.Context) ([]api.Release, error) {
	var releases []api.Release
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		releases, err = tx.ListReleases()
		return err
	})
	return releases, err
}

// DeleteRelease removes a release that no install references.
func (s *Service) DeleteRelease(ctx context.Context, id string) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetRelease(id); err != nil {
			return err
		}
		refs, err := tx.CountReleaseReferences(id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return &api.ReferentialConflictError{
				ResourceType: "release",
				ResourceName: id,
				ReferencedBy: "install",
				References:   refs,
			}
		}
		return tx.DeleteRelease(id)
	})
	if err != nil {
		return err
	}

	logging.Info("Catalog", "Deleted release %s", id)
	return nil
}
