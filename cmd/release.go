package cmd

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/app"
	"github.com/giantswarm/agentcatalog/internal/catalog"
)

var (
	releaseAgentType string
	releaseVersion   string
	releaseLabels    []string
	releaseURL       string
	releaseExe       string
)

var releaseCmd = &cobra.Command{
	Use:     "release",
	Aliases: []string{"releases"},
	Short:   "Manage agent releases",
	Long: `Releases are immutable, versioned builds of a monitoring agent.

Examples:
  agentcatalog release create --agent-type TELEGRAF --version 1.28.2 --url https://dl.example.com/telegraf.tgz --exe telegraf
  agentcatalog release list -o json
  agentcatalog release delete 3f1c...`,
}

var releaseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		labels, err := parseLabels("labels", releaseLabels)
		if err != nil {
			return err
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			rel, err := a.Services().Catalog.CreateRelease(cmd.Context(), catalog.ReleaseCreate{
				AgentType: releaseAgentType,
				Version:   releaseVersion,
				Labels:    labels,
				URL:       releaseURL,
				Exe:       releaseExe,
			})
			if err != nil {
				return err
			}
			return f.Release(rel)
		})
	},
}

var releaseGetCmd = &cobra.Command{
	Use:   "get <release-id>",
	Short: "Show a release",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			rel, err := a.Services().Catalog.GetRelease(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return f.Release(rel)
		})
	},
}

var releaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List releases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			releases, err := a.Services().Catalog.ListReleases(cmd.Context())
			if err != nil {
				return err
			}
			return f.Releases(releases)
		})
	},
}

var releaseDeleteCmd = &cobra.Command{
	Use:   "delete <release-id>",
	Short: "Delete a release that no install references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(a *app.Application) error {
			if err := a.Services().Catalog.DeleteRelease(cmd.Context(), args[0]); err != nil {
				return err
			}
			successf(cmd, "Release %s deleted", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(releaseCmd)
	releaseCmd.AddCommand(releaseCreateCmd, releaseGetCmd, releaseListCmd, releaseDeleteCmd)

	releaseCreateCmd.Flags().StringVar(&releaseAgentType, "agent-type", "", "Agent type (TELEGRAF or FILEBEAT)")
	releaseCreateCmd.Flags().StringVar(&releaseVersion, "version", "", "Semantic version, e.g. 1.28.2")
	releaseCreateCmd.Flags().StringSliceVar(&releaseLabels, "label", nil, "Descriptive label key=value (repeatable)")
	releaseCreateCmd.Flags().StringVar(&releaseURL, "url", "", "Download location of the agent artifact")
	releaseCreateCmd.Flags().StringVar(&releaseExe, "exe", "", "Executable inside the artifact")
	_ = releaseCreateCmd.MarkFlagRequired("agent-type")
	_ = releaseCreateCmd.MarkFlagRequired("version")
}
