package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/agentcatalog/internal/config"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// Application represents the main application structure that bootstraps
// and runs agentcatalog.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration, initializes logging and creates
// every service. Nothing is started until Run.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.Settings == nil {
		configPath := cfg.ConfigPath
		if configPath == "" {
			configPath = config.GetDefaultConfigPathOrPanic()
		}

		// Logging is needed before the configuration that tunes it.
		initLogging(cfg, config.GetDefaultConfig().Logging)

		settings, err := config.LoadConfig(configPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from %s", configPath)
			return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
		cfg.Settings = &settings
	}

	initLogging(cfg, cfg.Settings.Logging)

	services, err := InitializeServices(cfg.Settings)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func initLogging(cfg *Config, lc config.LoggingConfig) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}

	var output io.Writer = os.Stderr
	if cfg.Silent {
		output = io.Discard
	}
	logging.Init(level, logging.Format(lc.Format), output)
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run starts the event intake and the dispatcher and blocks until
// shutdown.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}

// Close releases the store.
func (a *Application) Close() error {
	return a.services.Close()
}
