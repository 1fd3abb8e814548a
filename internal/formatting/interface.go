// Package formatting renders catalog entities for the CLI as tables, JSON
// or YAML.
package formatting

import (
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/store"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return OutputFormat(s), nil
	default:
		return "", api.NewValidationError("output", fmt.Sprintf("unknown format %q, expected table, json or yaml", s))
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output

	// Output defaults to os.Stdout.
	Output io.Writer
}

// Formatter renders catalog entities.
type Formatter interface {
	Releases(releases []api.Release) error
	Release(release api.Release) error
	Installs(installs []api.Install) error
	Install(install api.Install) error
	Bindings(bindings []api.Binding) error
	AgentTypes(types []api.AgentType) error
	Outbox(entries []store.OutboxEntry) error
	Resource(resource api.Resource) error
	Resources(tenantID string, ids []string) error
	Outcome(path string, notifications []api.Notification) error
}

// New creates the formatter selected by options.Format.
func New(options Options) Formatter {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	switch options.Format {
	case FormatJSON:
		return &encodingFormatter{options: options, encode: encodeJSON}
	case FormatYAML:
		return &encodingFormatter{options: options, encode: encodeYAML}
	default:
		return &TableFormatter{options: options}
	}
}
