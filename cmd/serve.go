package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/app"
)

// serveCmd runs the reconciliation service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the binding reconciler and the notification dispatcher",
	Long: `Starts agentcatalog as a long-running service:

  - watches the file inventory (inventory.mode: file) for resource changes,
  - accepts pushed resource events on the ingest endpoint when enabled,
  - converges the binding table for every event,
  - delivers committed change notifications to the configured notifier.

Catalog commands (release, install) may run in other processes against the
same database; their notifications are delivered by the running service.

Configuration is read from config.yaml in --config-path.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(rootDebug, rootConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
