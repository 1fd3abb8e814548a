package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/app"
)

var (
	outboxAfter     int64
	outboxLimit     int
	outboxPending   bool
	outboxOlderThan time.Duration
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and drive the notification outbox",
	Long: `Every binding change enqueues a notification in the outbox in the same
transaction. A running server delivers them in sequence order; these
commands inspect the queue or run a delivery pass by hand.

Examples:
  agentcatalog outbox list --pending
  agentcatalog outbox dispatch
  agentcatalog outbox purge --older-than 24h`,
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications in sequence order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outboxLimit <= 0 {
			return api.NewValidationError("limit", "must be positive")
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			entries, err := a.Services().Store.ListNotifications(cmd.Context(), outboxAfter, outboxLimit, outboxPending)
			if err != nil {
				return err
			}
			return f.Outbox(entries)
		})
	},
}

var outboxDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one delivery pass over pending notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(a *app.Application) error {
			n, err := a.Services().Dispatcher.DispatchOnce(cmd.Context())
			successf(cmd, "Delivered %d notifications", n)
			return err
		})
	},
}

var outboxPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete delivered notifications older than a duration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outboxOlderThan < 0 {
			return api.NewValidationError("older-than", "must not be negative")
		}
		return withApplication(func(a *app.Application) error {
			removed, err := a.Services().Store.PurgeDelivered(cmd.Context(), time.Now().Add(-outboxOlderThan))
			if err != nil {
				return err
			}
			successf(cmd, "Purged %d delivered notifications", removed)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(outboxCmd)
	outboxCmd.AddCommand(outboxListCmd, outboxDispatchCmd, outboxPurgeCmd)

	outboxListCmd.Flags().Int64Var(&outboxAfter, "after", 0, "Only list notifications with a higher sequence number")
	outboxListCmd.Flags().IntVar(&outboxLimit, "limit", 100, "Maximum number of notifications")
	outboxListCmd.Flags().BoolVar(&outboxPending, "pending", false, "Only list undelivered notifications")

	outboxPurgeCmd.Flags().DurationVar(&outboxOlderThan, "older-than", 7*24*time.Hour, "Minimum age of purged notifications")
}
