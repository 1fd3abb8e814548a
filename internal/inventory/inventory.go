// Package inventory provides the resource inventory collaborator: the
// read-only source of resource labels and execution agent associations.
//
// Two implementations exist. FileInventory reads one YAML document per
// resource from a directory tree and watches it with fsnotify, emitting
// resource lifecycle events. HTTPClient queries a remote inventory service.
package inventory

import (
	"context"

	"github.com/giantswarm/agentcatalog/internal/api"
)

// Inventory looks up resources. Implementations must honour ctx deadlines.
type Inventory interface {
	// GetResource returns the resource or an api.NotFoundError.
	GetResource(ctx context.Context, tenantID, resourceID string) (api.Resource, error)

	// FindResourcesMatchingSelector returns the IDs of the tenant's
	// resources whose labels match selector under method, sorted.
	FindResourcesMatchingSelector(ctx context.Context, tenantID string, selector map[string]string, method api.SelectorMethod) ([]string, error)
}
