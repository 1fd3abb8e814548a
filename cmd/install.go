package cmd

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/app"
	"github.com/giantswarm/agentcatalog/internal/catalog"
)

var (
	installTenant   string
	installRelease  string
	installSelector []string
	installMethod   string
)

var installCmd = &cobra.Command{
	Use:     "install",
	Aliases: []string{"installs"},
	Short:   "Manage agent installs",
	Long: `An install declares that a tenant's resources matching a label selector
should run a release. Creating an install binds it immediately to every
matching resource where it wins the version comparison; deleting it
removes its bindings.

Examples:
  agentcatalog install create --tenant acme --release 3f1c... --selector os=linux,env=prod
  agentcatalog install create --tenant acme --release 3f1c... --selector os=linux --selector os=windows --method OR
  agentcatalog install list --tenant acme`,
}

var installCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an install and bind it to matching resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		selector, err := parseLabels("labelSelector", installSelector)
		if err != nil {
			return err
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			svc := a.Services().Catalog
			install, err := svc.CreateInstall(cmd.Context(), installTenant, catalog.InstallCreate{
				ReleaseID: installRelease,
				Selector:  selector,
				Method:    installMethod,
			})
			if err != nil {
				return err
			}
			if err := f.Install(install); err != nil {
				return err
			}
			bindings, err := svc.ListInstallBindings(cmd.Context(), installTenant, install.ID)
			if err != nil {
				return err
			}
			successf(cmd, "Bound to %d resources", len(bindings))
			return nil
		})
	},
}

var installGetCmd = &cobra.Command{
	Use:   "get <install-id>",
	Short: "Show an install",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			install, err := a.Services().Catalog.GetInstall(cmd.Context(), installTenant, args[0])
			if err != nil {
				return err
			}
			return f.Install(install)
		})
	},
}

var installListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's installs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			installs, err := a.Services().Catalog.ListInstalls(cmd.Context(), installTenant)
			if err != nil {
				return err
			}
			return f.Installs(installs)
		})
	},
}

var installDeleteCmd = &cobra.Command{
	Use:   "delete <install-id>",
	Short: "Delete an install and its bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(a *app.Application) error {
			if err := a.Services().Catalog.DeleteInstall(cmd.Context(), installTenant, args[0]); err != nil {
				return err
			}
			successf(cmd, "Install %s deleted", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.AddCommand(installCreateCmd, installGetCmd, installListCmd, installDeleteCmd)

	installCmd.PersistentFlags().StringVar(&installTenant, "tenant", "", "Tenant ID")
	_ = installCmd.MarkPersistentFlagRequired("tenant")

	installCreateCmd.Flags().StringVar(&installRelease, "release", "", "Release ID")
	installCreateCmd.Flags().StringSliceVar(&installSelector, "selector", nil, "Label selector key=value (repeatable; empty matches every resource)")
	installCreateCmd.Flags().StringVar(&installMethod, "method", "AND", "Selector method: AND or OR")
	_ = installCreateCmd.MarkFlagRequired("release")
}
