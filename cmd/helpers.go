package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/app"
	"github.com/giantswarm/agentcatalog/internal/formatting"
)

// openApplication bootstraps the services for a one-shot command. Logging
// is discarded unless --debug is set so that output stays parseable.
func openApplication() (*app.Application, error) {
	cfg := app.NewConfig(rootDebug, rootConfigPath)
	cfg.Silent = !rootDebug

	return app.NewApplication(cfg)
}

// withApplication opens the application, runs fn and closes it again.
func withApplication(fn func(a *app.Application) error) error {
	application, err := openApplication()
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(application)
}

func newFormatter(cmd *cobra.Command) (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(rootOutputFormat)
	if err != nil {
		return nil, err
	}
	return formatting.New(formatting.Options{
		Format: format,
		Quiet:  rootQuiet,
		Color:  isTerminal(cmd),
		Output: cmd.OutOrStdout(),
	}), nil
}

// isTerminal reports whether output goes to a character device.
func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// parseLabels turns repeated key=value flags into a map.
func parseLabels(field string, pairs []string) (map[string]string, error) {
	labels := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		for _, item := range strings.Split(pair, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			key, value, ok := strings.Cut(item, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return nil, api.NewValidationError(field, fmt.Sprintf("expected key=value, got %q", item))
			}
			if existing, dup := labels[key]; dup && existing != value {
				return nil, api.NewValidationError(field, fmt.Sprintf("key %q given twice", key))
			}
			labels[key] = strings.TrimSpace(value)
		}
	}
	return labels, nil
}

func successf(cmd *cobra.Command, format string, args ...any) {
	if rootQuiet || rootOutputFormat != string(formatting.FormatTable) {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
