package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(body), 0644))
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	def := GetDefaultConfig()
	assert.Equal(t, filepath.Join(dir, DefaultDatabaseFile), cfg.Database.Path)
	assert.Equal(t, filepath.Join(dir, DefaultInventoryDir), cfg.Inventory.Path)
	assert.Equal(t, def.Reconciler, cfg.Reconciler)
	assert.Equal(t, def.Notifier, cfg.Notifier)
	assert.True(t, cfg.Inventory.ResyncOnStart)
}

func TestLoadConfig_Override(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
database:
  path: /var/lib/agentcatalog/catalog.db
inventory:
  mode: http
  url: http://inventory:8081
  timeout: 2s
  resyncOnStart: false
notifier:
  mode: webhook
  url: https://hooks.example.com/bindings
  batchSize: 10
reconciler:
  workers: 8
  maxBackoff: 30s
logging:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/agentcatalog/catalog.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Database.PoolSize, "unset fields keep defaults")
	assert.Equal(t, InventoryModeHTTP, cfg.Inventory.Mode)
	assert.Equal(t, 2*time.Second, cfg.Inventory.Timeout)
	assert.False(t, cfg.Inventory.ResyncOnStart)
	assert.Equal(t, DefaultInventoryDir, cfg.Inventory.Path, "inventory path is not resolved in http mode")
	assert.Equal(t, NotifierModeWebhook, cfg.Notifier.Mode)
	assert.Equal(t, 10, cfg.Notifier.BatchSize)
	assert.Equal(t, time.Second, cfg.Notifier.PollInterval)
	assert.Equal(t, 8, cfg.Reconciler.Workers)
	assert.Equal(t, 30*time.Second, cfg.Reconciler.MaxBackoff)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "database:\n  path: [unterminated\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cfgErr ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrorTypeParse, cfgErr.ErrorType)
	assert.Equal(t, filepath.Join(dir, configFileName), cfgErr.FilePath)
}

func TestLoadConfig_BadDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "inventory:\n  timeout: soon\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cfgErr ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrorTypeParse, cfgErr.ErrorType)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
notifier:
  mode: webhook
reconciler:
  workers: 0
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cfgErr ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrorTypeValidation, cfgErr.ErrorType)
	assert.Contains(t, cfgErr.Message, "notifier.url")
	assert.Contains(t, cfgErr.Message, "reconciler.workers")
	assert.NotEmpty(t, cfgErr.Suggestions)
	assert.Contains(t, cfgErr.DetailedError(), "Suggestions:")
}
