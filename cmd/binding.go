package cmd

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/app"
)

var (
	bindingTenant   string
	bindingResource string
	bindingInstall  string
)

var bindingCmd = &cobra.Command{
	Use:     "binding",
	Aliases: []string{"bindings"},
	Short:   "Inspect resolved bindings",
	Long: `Bindings are produced by the reconciler only. There is at most one binding
per resource and agent type.

Examples:
  agentcatalog binding get --tenant acme --resource web-1 TELEGRAF
  agentcatalog binding list --tenant acme --resource web-1
  agentcatalog binding list --tenant acme --install 9a2b...
  agentcatalog binding types --tenant acme --resource web-1`,
}

var bindingGetCmd = &cobra.Command{
	Use:   "get <agent-type>",
	Short: "Show the binding of one agent type on a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindingResource == "" {
			return api.NewValidationError("resource", "--resource is required")
		}
		agentType, err := api.ParseAgentType(args[0])
		if err != nil {
			return err
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			b, err := a.Services().Catalog.GetBindingFor(cmd.Context(), bindingTenant, bindingResource, agentType)
			if err != nil {
				return err
			}
			return f.Bindings([]api.Binding{b})
		})
	},
}

var bindingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the bindings of a resource or of an install",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (bindingResource == "") == (bindingInstall == "") {
			return api.NewValidationError("flags", "exactly one of --resource or --install is required")
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			svc := a.Services().Catalog

			var bindings []api.Binding
			var err error
			if bindingInstall != "" {
				bindings, err = svc.ListInstallBindings(cmd.Context(), bindingTenant, bindingInstall)
			} else {
				bindings, err = svc.ListBindings(cmd.Context(), bindingTenant, bindingResource)
			}
			if err != nil {
				return err
			}
			return f.Bindings(bindings)
		})
	},
}

var bindingTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the agent types bound on a resource",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindingResource == "" {
			return api.NewValidationError("resource", "--resource is required")
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			types, err := a.Services().Catalog.ListBoundAgentTypes(cmd.Context(), bindingTenant, bindingResource)
			if err != nil {
				return err
			}
			return f.AgentTypes(types)
		})
	},
}

func init() {
	rootCmd.AddCommand(bindingCmd)
	bindingCmd.AddCommand(bindingGetCmd, bindingListCmd, bindingTypesCmd)

	bindingCmd.PersistentFlags().StringVar(&bindingTenant, "tenant", "", "Tenant ID")
	bindingCmd.PersistentFlags().StringVar(&bindingResource, "resource", "", "Resource ID")
	_ = bindingCmd.MarkPersistentFlagRequired("tenant")

	bindingListCmd.Flags().StringVar(&bindingInstall, "install", "", "List the bindings of this install instead")
}
