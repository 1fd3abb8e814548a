package app

import (
	"github.com/giantswarm/agentcatalog/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level
	Debug bool

	// Silent discards log output; used by CLI commands whose output is
	// meant for scripts
	Silent bool

	// ConfigPath is the configuration directory. Empty means
	// ~/.config/agentcatalog.
	ConfigPath string

	// Settings is the loaded configuration. When set before
	// NewApplication, loading is skipped.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
