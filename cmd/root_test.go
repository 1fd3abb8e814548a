package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/config"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if GetVersion() != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "agentcatalog" {
		t.Errorf("Expected Use to be 'agentcatalog', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "agentcatalog version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	expected := "agentcatalog version 1.0.0\n"
	if buf.String() != expected {
		t.Errorf("Expected version output %q, got %q", expected, buf.String())
	}
}

func TestSubcommands(t *testing.T) {
	expectedCommands := []string{"version", "serve", "release", "install", "binding", "outbox", "event", "inventory"}
	foundCommands := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		foundCommands[c.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"generic", errors.New("boom"), ExitCodeError},
		{"not found", api.NewReleaseNotFoundError("r1"), ExitCodeNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", api.NewInstallNotFoundError("i1")), ExitCodeNotFound},
		{"conflict", api.NewConflictError("release", "exists"), ExitCodeConflict},
		{"referential conflict", &api.ReferentialConflictError{ResourceType: "release", ResourceName: "r1", ReferencedBy: "install", References: 2}, ExitCodeConflict},
		{"validation", api.NewValidationError("version", "bad"), ExitCodeInvalid},
		{"configuration", config.NewConfigurationError("config.yaml", "parse", "malformed YAML", ""), ExitCodeInvalid},
		{"wrapped configuration", fmt.Errorf("load: %w", config.NewConfigurationError("config.yaml", "io", "cannot read", "")), ExitCodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseLabels(t *testing.T) {
	got, err := parseLabels("labels", []string{"os=linux, env=prod", "team=core"})
	if err != nil {
		t.Fatalf("parseLabels() error = %v", err)
	}
	if len(got) != 3 || got["os"] != "linux" || got["env"] != "prod" || got["team"] != "core" {
		t.Errorf("parseLabels() = %v", got)
	}

	if _, err := parseLabels("labels", []string{"os"}); !api.IsValidation(err) {
		t.Errorf("expected validation error for missing '=', got %v", err)
	}
	if _, err := parseLabels("labels", []string{"os=linux", "os=windows"}); !api.IsValidation(err) {
		t.Errorf("expected validation error for conflicting key, got %v", err)
	}
	if got, err := parseLabels("labels", []string{"os=linux", "os=linux"}); err != nil || len(got) != 1 {
		t.Errorf("repeating an identical pair should be accepted, got %v, %v", got, err)
	}
}

func TestRootCommandHelp(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("Error executing help command: %v", err)
	}
	if !strings.Contains(out, "agentcatalog") {
		t.Errorf("Help output should contain 'agentcatalog'. Got: %q", out)
	}
	if !strings.Contains(out, "converges the") {
		t.Errorf("Help output should contain the long description. Got: %q", out)
	}
}
