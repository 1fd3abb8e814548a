package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Suggestions collects the non-empty suggestions.
func (ve ValidationErrors) Suggestions() []string {
	var out []string
	for _, err := range ve {
		if err.Suggestion != "" {
			out = append(out, err.Suggestion)
		}
	}
	return out
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

func (ve *ValidationErrors) addWithSuggestion(field, message, suggestion string, value interface{}) {
	*ve = append(*ve, ValidationError{
		Field:      field,
		Value:      value,
		Message:    message,
		Suggestion: suggestion,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the whole configuration and returns every problem found.
func (c Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(c.Database.Path) == "" {
		errs.Add("database.path", "is required")
	}
	if c.Database.PoolSize < 1 {
		errs.Add("database.poolSize", "must be at least 1", c.Database.PoolSize)
	}

	if err := ValidateOneOf("inventory.mode", c.Inventory.Mode, []string{InventoryModeFile, InventoryModeHTTP}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	switch c.Inventory.Mode {
	case InventoryModeFile:
		if strings.TrimSpace(c.Inventory.Path) == "" {
			errs.Add("inventory.path", "is required in file mode")
		}
	case InventoryModeHTTP:
		if !validHTTPURL(c.Inventory.URL) {
			errs.addWithSuggestion("inventory.url", "must be an http or https URL in http mode",
				"set inventory.url to the base URL of the inventory service", c.Inventory.URL)
		}
	}
	if c.Inventory.Timeout <= 0 {
		errs.Add("inventory.timeout", "must be positive", c.Inventory.Timeout)
	}

	if err := ValidateOneOf("notifier.mode", c.Notifier.Mode, []string{NotifierModeLog, NotifierModeWebhook}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if c.Notifier.Mode == NotifierModeWebhook && !validHTTPURL(c.Notifier.URL) {
		errs.addWithSuggestion("notifier.url", "must be an http or https URL in webhook mode",
			"set notifier.url or switch notifier.mode to log", c.Notifier.URL)
	}
	if c.Notifier.PollInterval <= 0 {
		errs.Add("notifier.pollInterval", "must be positive", c.Notifier.PollInterval)
	}
	if c.Notifier.BatchSize < 1 {
		errs.Add("notifier.batchSize", "must be at least 1", c.Notifier.BatchSize)
	}
	if c.Notifier.Retention < 0 {
		errs.Add("notifier.retention", "must not be negative", c.Notifier.Retention)
	}

	if c.Reconciler.Workers < 1 {
		errs.Add("reconciler.workers", "must be at least 1", c.Reconciler.Workers)
	}
	if c.Reconciler.MaxRetries < 0 {
		errs.Add("reconciler.maxRetries", "must not be negative", c.Reconciler.MaxRetries)
	}
	if c.Reconciler.InitialBackoff <= 0 {
		errs.Add("reconciler.initialBackoff", "must be positive", c.Reconciler.InitialBackoff)
	}
	if c.Reconciler.MaxBackoff < c.Reconciler.InitialBackoff {
		errs.Add("reconciler.maxBackoff", "must not be smaller than reconciler.initialBackoff", c.Reconciler.MaxBackoff)
	}
	if c.Reconciler.EventTimeout <= 0 {
		errs.Add("reconciler.eventTimeout", "must be positive", c.Reconciler.EventTimeout)
	}

	if c.Ingest.Enabled && strings.TrimSpace(c.Ingest.Addr) == "" {
		errs.Add("ingest.addr", "is required when ingest is enabled")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs.Add("logging.level", err.Error(), c.Logging.Level)
	}
	if err := ValidateOneOf("logging.format", c.Logging.Format, []string{string(logging.FormatText), string(logging.FormatJSON)}); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	return errs
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
