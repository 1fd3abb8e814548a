package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/agentcatalog/pkg/logging"
)

const (
	userConfigDir  = ".config/agentcatalog"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns ~/.config/agentcatalog.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath over the defaults, resolves
// relative paths against configPath and validates the result.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, NewConfigurationError(configFilePath, ErrorTypeIO, "cannot read configuration file", err.Error())
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			cfgErr := NewConfigurationError(configFilePath, ErrorTypeParse, "malformed YAML", err.Error())
			cfgErr.LineNumber = yamlErrorLine(err)
			return Config{}, cfgErr
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	config.resolvePaths(configPath)

	if errs := config.Validate(); errs.HasErrors() {
		cfgErr := NewConfigurationError(configFilePath, ErrorTypeValidation, errs.Error(), "")
		cfgErr.Suggestions = errs.Suggestions()
		return Config{}, cfgErr
	}
	return config, nil
}

func (c *Config) resolvePaths(base string) {
	c.Database.Path = resolve(base, c.Database.Path)
	if c.Inventory.Mode == InventoryModeFile {
		c.Inventory.Path = resolve(base, c.Inventory.Path)
	}
}

func resolve(base, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// yamlErrorLine extracts the line number yaml.v3 reports for type errors
// and syntax errors, or 0.
func yamlErrorLine(err error) int {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		var line int
		if _, scanErr := fmt.Sscanf(typeErr.Errors[0], "line %d:", &line); scanErr == nil {
			return line
		}
	}
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		return line
	}
	return 0
}
