package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/giantswarm/agentcatalog/internal/catalog"
	"github.com/giantswarm/agentcatalog/internal/config"
	"github.com/giantswarm/agentcatalog/internal/ingest"
	"github.com/giantswarm/agentcatalog/internal/inventory"
	"github.com/giantswarm/agentcatalog/internal/notify"
	"github.com/giantswarm/agentcatalog/internal/reconciler"
	"github.com/giantswarm/agentcatalog/internal/store"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// Services holds all initialized components used by the application.
type Services struct {
	Store *store.Store

	// Inventory answers resource lookups for the engine and the catalog.
	Inventory inventory.Inventory

	// FileInventory is set in file mode; it doubles as an event source.
	FileInventory *inventory.FileInventory

	// Ingest is set when the ingest endpoint is enabled.
	Ingest *ingest.Server

	Engine     *reconciler.Engine
	Catalog    *catalog.Service
	Manager    *reconciler.Manager
	Dispatcher *notify.Dispatcher
}

// InitializeServices creates every component from the configuration.
func InitializeServices(cfg *config.Config) (*Services, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	st, err := store.Open(store.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	s := &Services{Store: st}

	var sources []reconciler.EventSource

	switch cfg.Inventory.Mode {
	case config.InventoryModeHTTP:
		s.Inventory = inventory.NewHTTPClient(cfg.Inventory.URL, nil, cfg.Inventory.Timeout)
		logging.Info("Bootstrap", "Using remote inventory at %s", cfg.Inventory.URL)
	default:
		s.FileInventory = inventory.NewFileInventory(cfg.Inventory.Path, inventory.FileOptions{
			DebounceInterval: cfg.Inventory.Debounce,
			ResyncOnStart:    cfg.Inventory.ResyncOnStart,
		})
		s.Inventory = s.FileInventory
		sources = append(sources, s.FileInventory)
		logging.Info("Bootstrap", "Using file inventory at %s", cfg.Inventory.Path)
	}

	if cfg.Ingest.Enabled {
		s.Ingest = ingest.NewServer(cfg.Ingest.Addr)
		sources = append(sources, s.Ingest)
	}

	s.Engine = reconciler.NewEngine(reconciler.EngineConfig{
		Store:            st,
		Inventory:        s.Inventory,
		InventoryTimeout: cfg.Inventory.Timeout,
	})

	s.Catalog = catalog.New(catalog.Config{
		Store:            st,
		Engine:           s.Engine,
		Inventory:        s.Inventory,
		InventoryTimeout: cfg.Inventory.Timeout,
	})

	var source reconciler.EventSource
	if len(sources) > 0 {
		source = reconciler.NewMultiSource(sources...)
	}
	s.Manager = reconciler.NewManager(s.Engine, source, reconciler.ManagerConfig{
		WorkerCount:    cfg.Reconciler.Workers,
		MaxRetries:     cfg.Reconciler.MaxRetries,
		InitialBackoff: cfg.Reconciler.InitialBackoff,
		MaxBackoff:     cfg.Reconciler.MaxBackoff,
		EventTimeout:   cfg.Reconciler.EventTimeout,
		EventBuffer:    cfg.Reconciler.EventBuffer,
	})

	s.Dispatcher = notify.NewDispatcher(st, newPublisher(cfg.Notifier), notify.DispatcherConfig{
		PollInterval:  cfg.Notifier.PollInterval,
		BatchSize:     cfg.Notifier.BatchSize,
		Retention:     cfg.Notifier.Retention,
		PurgeInterval: cfg.Notifier.PurgeInterval,
	})
	st.OnCommit(s.Dispatcher.Wake)

	return s, nil
}

func newPublisher(cfg config.NotifierConfig) notify.Publisher {
	if cfg.Mode == config.NotifierModeWebhook {
		logging.Info("Bootstrap", "Delivering notifications to %s", cfg.URL)
		return notify.NewWebhookPublisher(cfg.URL, nil, cfg.Timeout)
	}
	return notify.LogPublisher{}
}

// Close releases the store.
func (s *Services) Close() error {
	return s.Store.Close()
}
