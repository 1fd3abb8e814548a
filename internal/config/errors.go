package config

import (
	"fmt"
	"strings"
)

// Kinds of ConfigurationError.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError describes why config.yaml could not be used.
type ConfigurationError struct {
	FilePath  string `json:"filePath"`
	ErrorType string `json:"errorType"` // io, parse or validation
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`

	// LineNumber is set for parse errors when yaml.v3 reports one.
	LineNumber  int      `json:"lineNumber,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (ce ConfigurationError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FilePath, ce.Message)
	if ce.LineNumber > 0 {
		msg = fmt.Sprintf("[%s] %s:%d: %s", ce.ErrorType, ce.FilePath, ce.LineNumber, ce.Message)
	}
	if ce.Details != "" {
		msg += ": " + ce.Details
	}
	return msg
}

// DetailedError renders the error over several lines, including every
// suggestion, for display on a terminal.
func (ce ConfigurationError) DetailedError() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Configuration error in %s\n", ce.FilePath)
	if ce.LineNumber > 0 {
		fmt.Fprintf(&b, "  Line: %d\n", ce.LineNumber)
	}
	fmt.Fprintf(&b, "  %s\n", ce.Message)
	if ce.Details != "" {
		fmt.Fprintf(&b, "  Details: %s\n", ce.Details)
	}
	if len(ce.Suggestions) > 0 {
		b.WriteString("  Suggestions:\n")
		for _, s := range ce.Suggestions {
			fmt.Fprintf(&b, "    - %s\n", s)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewConfigurationError creates a ConfigurationError without line or
// suggestion information.
func NewConfigurationError(filePath, errorType, message, details string) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		ErrorType: errorType,
		Message:   message,
		Details:   details,
	}
}
