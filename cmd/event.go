package cmd

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/app"
)

var (
	eventTenant     string
	eventResource   string
	eventDeleted    bool
	eventLabels     bool
	eventReattached string
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Handle a resource event synchronously",
	Long: `Feeds one resource event through the reconciler and prints the path it
took along with the notifications it enqueued. This is the same code the
server runs for every event it receives.

Examples:
  agentcatalog event --tenant acme --resource web-1 --labels-changed
  agentcatalog event --tenant acme --resource web-1 --reattached ea-7
  agentcatalog event --tenant acme --resource web-1 --deleted -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ev := api.ResourceEvent{
			TenantID:                   eventTenant,
			ResourceID:                 eventResource,
			Deleted:                    eventDeleted,
			LabelsChanged:              eventLabels,
			ReattachedExecutionAgentID: eventReattached,
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			out, err := a.Services().Engine.HandleResourceEvent(cmd.Context(), ev)
			if err != nil {
				return err
			}
			return f.Outcome(string(out.Path), out.Notifications)
		})
	},
}

func init() {
	rootCmd.AddCommand(eventCmd)

	eventCmd.Flags().StringVar(&eventTenant, "tenant", "", "Tenant ID")
	eventCmd.Flags().StringVar(&eventResource, "resource", "", "Resource ID")
	eventCmd.Flags().BoolVar(&eventDeleted, "deleted", false, "The resource was deleted")
	eventCmd.Flags().BoolVar(&eventLabels, "labels-changed", false, "The resource's labels changed")
	eventCmd.Flags().StringVar(&eventReattached, "reattached", "", "ID of the execution agent the resource reattached to")
	_ = eventCmd.MarkFlagRequired("tenant")
	_ = eventCmd.MarkFlagRequired("resource")
}
