package config

import "time"

const (
	// DefaultDatabaseFile is the database file name inside the config directory.
	DefaultDatabaseFile = "agentcatalog.db"

	// DefaultInventoryDir is the file inventory root inside the config directory.
	DefaultInventoryDir = "inventory"

	// DefaultIngestAddr is where the ingest endpoint listens when enabled.
	DefaultIngestAddr = "127.0.0.1:8091"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Path:     DefaultDatabaseFile,
			PoolSize: 4,
		},
		Inventory: InventoryConfig{
			Mode:          InventoryModeFile,
			Path:          DefaultInventoryDir,
			Timeout:       5 * time.Second,
			Debounce:      200 * time.Millisecond,
			ResyncOnStart: true,
		},
		Notifier: NotifierConfig{
			Mode:          NotifierModeLog,
			Timeout:       10 * time.Second,
			PollInterval:  time.Second,
			BatchSize:     100,
			Retention:     7 * 24 * time.Hour,
			PurgeInterval: time.Hour,
		},
		Reconciler: ReconcilerConfig{
			Workers:        4,
			MaxRetries:     5,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Minute,
			EventTimeout:   30 * time.Second,
			EventBuffer:    256,
		},
		Ingest: IngestConfig{
			Addr: DefaultIngestAddr,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
