package formatting

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/store"
)

// encodingFormatter writes entities as JSON or YAML documents. Lists are
// always arrays, never null.
type encodingFormatter struct {
	options Options
	encode  func(w io.Writer, v any) error
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (f *encodingFormatter) write(v any) error {
	return f.encode(f.options.Output, v)
}

func (f *encodingFormatter) Releases(releases []api.Release) error {
	return f.write(nonNil(releases))
}

func (f *encodingFormatter) Release(release api.Release) error {
	return f.write(release)
}

func (f *encodingFormatter) Installs(installs []api.Install) error {
	return f.write(nonNil(installs))
}

func (f *encodingFormatter) Install(install api.Install) error {
	return f.write(install)
}

func (f *encodingFormatter) Bindings(bindings []api.Binding) error {
	return f.write(nonNil(bindings))
}

func (f *encodingFormatter) AgentTypes(types []api.AgentType) error {
	return f.write(nonNil(types))
}

func (f *encodingFormatter) Outbox(entries []store.OutboxEntry) error {
	return f.write(nonNil(entries))
}

func (f *encodingFormatter) Resource(resource api.Resource) error {
	return f.write(resource)
}

func (f *encodingFormatter) Resources(tenantID string, ids []string) error {
	return f.write(map[string]any{"tenantId": tenantID, "resourceIds": nonNil(ids)})
}

func (f *encodingFormatter) Outcome(path string, notifications []api.Notification) error {
	return f.write(map[string]any{"path": path, "notifications": nonNil(notifications)})
}
