// Package resolver picks, for one resource, the single best Install per
// agent type among every Install whose selector matches the resource.
package resolver

import (
	"context"
	"fmt"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/semver"
)

// Source is the read side of the catalog the resolver needs.
// *store.Tx implements it.
type Source interface {
	MatchInstalls(tenantID string, resourceLabels map[string]string) ([]api.Install, error)
	GetRelease(id string) (api.Release, error)
}

// Candidate is an Install together with the Release it references.
type Candidate struct {
	Install api.Install
	Release api.Release
}

// AgentType is the agent type the candidate would bind.
func (c Candidate) AgentType() api.AgentType {
	return c.Release.AgentType
}

// Resolve returns the winning candidate per agent type for a resource with
// the given labels. An empty result means nothing matches.
func Resolve(ctx context.Context, src Source, tenantID string, resourceLabels map[string]string) (map[api.AgentType]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	installs, err := src.MatchInstalls(tenantID, resourceLabels)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", tenantID, err)
	}

	releases := make(map[string]api.Release)
	best := make(map[api.AgentType]Candidate)
	for _, in := range installs {
		rel, ok := releases[in.ReleaseID]
		if !ok {
			rel, err = src.GetRelease(in.ReleaseID)
			if err != nil {
				return nil, fmt.Errorf("resolve install %s: %w", in.ID, err)
			}
			releases[in.ReleaseID] = rel
		}

		c := Candidate{Install: in, Release: rel}
		if current, ok := best[rel.AgentType]; !ok || Better(c, current) {
			best[rel.AgentType] = c
		}
	}
	return best, nil
}

// Better reports whether a should be preferred over b. Higher version
// precedence wins. Equal precedence falls back to the earlier CreatedAt,
// then to the lexicographically smaller Install ID.
func Better(a, b Candidate) bool {
	if c := semver.Compare(a.Release.Version, b.Release.Version); c != 0 {
		return c > 0
	}
	if !a.Install.CreatedAt.Equal(b.Install.CreatedAt) {
		return a.Install.CreatedAt.Before(b.Install.CreatedAt)
	}
	return a.Install.ID < b.Install.ID
}
