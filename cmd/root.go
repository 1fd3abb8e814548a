package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeInvalid indicates invalid input or configuration.
	ExitCodeInvalid = 2
	// ExitCodeNotFound indicates a referenced release, install, binding or
	// resource does not exist.
	ExitCodeNotFound = 4
	// ExitCodeConflict indicates a duplicate declaration or a deletion
	// blocked by references.
	ExitCodeConflict = 5
)

// Global flags shared by every subcommand.
var (
	rootConfigPath   string
	rootDebug        bool
	rootOutputFormat string
	rootQuiet        bool
)

// rootCmd represents the base command for the agentcatalog application.
var rootCmd = &cobra.Command{
	Use:   "agentcatalog",
	Short: "Decide which monitoring agent release runs on every resource",
	Long: `agentcatalog keeps, for every resource of a tenant, the binding to the
agent install that should run on it. Releases describe versioned agent
builds; installs select resources by label; the reconciler converges the
binding table as resources change and announces every change.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agentcatalog version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		var cfgErr config.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, cfgErr.DetailedError())
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case api.IsNotFound(err):
		return ExitCodeNotFound
	case api.IsConflict(err), api.IsReferentialConflict(err):
		return ExitCodeConflict
	case api.IsValidation(err):
		return ExitCodeInvalid
	}

	var cfgErr config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return ExitCodeInvalid
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", "", "Configuration directory (default ~/.config/agentcatalog)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&rootOutputFormat, "output", "o", "table", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "Suppress totals and empty-result messages")
}
