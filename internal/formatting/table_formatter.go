package formatting

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/store"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

func (f *TableFormatter) Releases(releases []api.Release) error {
	if len(releases) == 0 {
		return f.empty("No releases found")
	}
	t := f.createTable("ID", "AGENT TYPE", "VERSION", "LABELS", "URL", "CREATED")
	for _, r := range releases {
		t.AppendRow(table.Row{r.ID, f.agentType(r.AgentType), r.Version, FormatLabels(r.Labels), r.URL, FormatTime(r.CreatedAt)})
	}
	return f.render(t, len(releases), "releases")
}

func (f *TableFormatter) Release(r api.Release) error {
	return f.details([][2]string{
		{"ID", r.ID},
		{"Agent type", string(r.AgentType)},
		{"Version", r.Version},
		{"Labels", FormatLabels(r.Labels)},
		{"URL", r.URL},
		{"Exe", r.Exe},
		{"Created", FormatTime(r.CreatedAt)},
	})
}

func (f *TableFormatter) Installs(installs []api.Install) error {
	if len(installs) == 0 {
		return f.empty("No installs found")
	}
	t := f.createTable("ID", "TENANT", "RELEASE", "SELECTOR", "METHOD", "CREATED")
	for _, in := range installs {
		t.AppendRow(table.Row{in.ID, in.TenantID, in.ReleaseID, FormatSelector(in.Selector), in.Method, FormatTime(in.CreatedAt)})
	}
	return f.render(t, len(installs), "installs")
}

func (f *TableFormatter) Install(in api.Install) error {
	return f.details([][2]string{
		{"ID", in.ID},
		{"Tenant", in.TenantID},
		{"Release", in.ReleaseID},
		{"Selector", FormatSelector(in.Selector)},
		{"Method", string(in.Method)},
		{"Created", FormatTime(in.CreatedAt)},
	})
}

func (f *TableFormatter) Bindings(bindings []api.Binding) error {
	if len(bindings) == 0 {
		return f.empty("No bindings found")
	}
	t := f.createTable("RESOURCE", "AGENT TYPE", "INSTALL", "BINDING", "CREATED")
	for _, b := range bindings {
		t.AppendRow(table.Row{api.ResourceKey(b.TenantID, b.ResourceID), f.agentType(b.AgentType), b.InstallID, b.ID, FormatTime(b.CreatedAt)})
	}
	return f.render(t, len(bindings), "bindings")
}

func (f *TableFormatter) AgentTypes(types []api.AgentType) error {
	if len(types) == 0 {
		return f.empty("No agent types bound")
	}
	for _, at := range types {
		fmt.Fprintln(f.options.Output, f.agentType(at))
	}
	return nil
}

func (f *TableFormatter) Outbox(entries []store.OutboxEntry) error {
	if len(entries) == 0 {
		return f.empty("Outbox is empty")
	}
	t := f.createTable("SEQ", "KEY", "AGENT TYPE", "OP", "INSTALL", "ATTEMPTS", "STATUS", "CREATED")
	for _, e := range entries {
		status := f.colorize(text.FgYellow, "pending")
		if e.DeliveredAt != nil {
			status = f.colorize(text.FgGreen, "delivered")
		} else if e.LastError != "" {
			status = f.colorize(text.FgRed, "failing: "+Truncate(e.LastError, 60))
		}
		t.AppendRow(table.Row{
			strconv.FormatInt(e.Seq, 10), e.Key(), f.agentType(e.AgentType), e.Op,
			e.InstallID, e.Attempts, status, FormatTime(e.CreatedAt),
		})
	}
	return f.render(t, len(entries), "notifications")
}

func (f *TableFormatter) Resource(r api.Resource) error {
	agent := r.ExecutionAgentID
	if agent == "" {
		agent = "-"
	}
	return f.details([][2]string{
		{"Tenant", r.TenantID},
		{"Resource", r.ResourceID},
		{"Labels", FormatLabels(r.Labels)},
		{"Execution agent", agent},
	})
}

func (f *TableFormatter) Resources(tenantID string, ids []string) error {
	if len(ids) == 0 {
		return f.empty("No matching resources")
	}
	t := f.createTable("TENANT", "RESOURCE")
	for _, id := range ids {
		t.AppendRow(table.Row{tenantID, id})
	}
	return f.render(t, len(ids), "resources")
}

// Outcome prints the reconciler path followed by the notifications it
// enqueued, if any.
func (f *TableFormatter) Outcome(path string, notifications []api.Notification) error {
	if err := f.details([][2]string{{"Path", path}}); err != nil {
		return err
	}
	if len(notifications) == 0 {
		return f.empty("No notifications enqueued")
	}
	t := f.createTable("SEQ", "KEY", "AGENT TYPE", "OP", "INSTALL")
	for _, n := range notifications {
		t.AppendRow(table.Row{strconv.FormatInt(n.Seq, 10), n.Key(), f.agentType(n.AgentType), n.Op, n.InstallID})
	}
	return f.render(t, len(notifications), "notifications")
}

// Helper methods

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Output)
	t.SetStyle(table.StyleRounded)

	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = f.colorize(text.FgHiCyan, h)
	}
	t.AppendHeader(row)
	return t
}

func (f *TableFormatter) render(t table.Writer, count int, noun string) error {
	t.Render()
	if !f.options.Quiet {
		fmt.Fprintf(f.options.Output, "\n%s %s %s\n",
			f.colorize(text.FgHiBlue, "Total:"),
			f.colorize(text.FgHiWhite, strconv.Itoa(count)),
			f.colorize(text.FgHiBlue, noun))
	}
	return nil
}

func (f *TableFormatter) details(rows [][2]string) error {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Output)
	t.SetStyle(table.StyleRounded)
	for _, r := range rows {
		t.AppendRow(table.Row{f.colorize(text.FgHiCyan, r[0]), r[1]})
	}
	t.Render()
	return nil
}

// empty formats empty result messages
func (f *TableFormatter) empty(message string) error {
	if f.options.Quiet {
		return nil
	}
	_, err := fmt.Fprintln(f.options.Output, f.colorize(text.FgYellow, message))
	return err
}

func (f *TableFormatter) agentType(at api.AgentType) string {
	switch at {
	case api.AgentTypeTelegraf:
		return f.colorize(text.FgMagenta, string(at))
	case api.AgentTypeFilebeat:
		return f.colorize(text.FgBlue, string(at))
	default:
		return string(at)
	}
}

func (f *TableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}
