package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/agentcatalog/internal/inventory"
	"github.com/giantswarm/agentcatalog/internal/reconciler"
	"github.com/giantswarm/agentcatalog/internal/store"
)

// Config holds the collaborators of a Service.
type Config struct {
	Store     *store.Store
	Engine    *reconciler.Engine
	Inventory inventory.Inventory

	// InventoryTimeout bounds the selector lookup on install creation.
	// Defaults to 10s.
	InventoryTimeout time.Duration

	// NewID generates release and install IDs. Defaults to random UUIDs.
	NewID func() string
}

// Service implements the catalog operations.
type Service struct {
	store            *store.Store
	engine           *reconciler.Engine
	inventory        inventory.Inventory
	inventoryTimeout time.Duration
	newID            func() string
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.InventoryTimeout <= 0 {
		cfg.InventoryTimeout = 10 * time.Second
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Service{
		store:            cfg.Store,
		engine:           cfg.Engine,
		inventory:        cfg.Inventory,
		inventoryTimeout: cfg.InventoryTimeout,
		newID:            cfg.NewID,
	}
}
