package config

import "time"

// Config is the top-level configuration structure for agentcatalog.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Inventory  InventoryConfig  `yaml:"inventory"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig configures the SQLite catalog store.
type DatabaseConfig struct {
	Path     string `yaml:"path,omitempty"`     // Database file (default: agentcatalog.db)
	PoolSize int    `yaml:"poolSize,omitempty"` // Connection pool size (default: 4)
}

// Inventory modes.
const (
	InventoryModeFile = "file"
	InventoryModeHTTP = "http"
)

// InventoryConfig selects and configures the resource inventory.
type InventoryConfig struct {
	Mode          string        `yaml:"mode,omitempty"`
	Path          string        `yaml:"path,omitempty"`
	URL           string        `yaml:"url,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"` // Per-call deadline for inventory lookups
	Debounce      time.Duration `yaml:"debounce,omitempty"`
	ResyncOnStart bool          `yaml:"resyncOnStart,omitempty"`
}

// Notifier modes.
const (
	NotifierModeLog     = "log"
	NotifierModeWebhook = "webhook"
)

// NotifierConfig configures delivery of outbox notifications.
type NotifierConfig struct {
	Mode          string        `yaml:"mode,omitempty"`
	URL           string        `yaml:"url,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	PollInterval  time.Duration `yaml:"pollInterval,omitempty"`
	BatchSize     int           `yaml:"batchSize,omitempty"`
	Retention     time.Duration `yaml:"retention,omitempty"` // Delivered rows older than this are purged; 0 keeps them
	PurgeInterval time.Duration `yaml:"purgeInterval,omitempty"`
}

// ReconcilerConfig configures the event intake worker pool.
type ReconcilerConfig struct {
	Workers        int           `yaml:"workers,omitempty"`
	MaxRetries     int           `yaml:"maxRetries,omitempty"`
	InitialBackoff time.Duration `yaml:"initialBackoff,omitempty"`
	MaxBackoff     time.Duration `yaml:"maxBackoff,omitempty"`
	EventTimeout   time.Duration `yaml:"eventTimeout,omitempty"`
	EventBuffer    int           `yaml:"eventBuffer,omitempty"`
}

// IngestConfig configures the HTTP endpoint that accepts resource events
// pushed by an external inventory.
type IngestConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}
