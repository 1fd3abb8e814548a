package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a referenced Release, Install, Binding or
// Resource that does not exist in the requested tenant scope.
type NotFoundError struct {
	// ResourceType categorizes what was not found (e.g. "release", "install")
	ResourceType string

	// ResourceName is the identifier that was looked up
	ResourceName string

	// Message overrides the default message when set
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// NewNotFoundErrorWithMessage creates a new NotFoundError with a custom message.
func NewNotFoundErrorWithMessage(resourceType, resourceName, message string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
		Message:      message,
	}
}

var (
	// NewReleaseNotFoundError creates a release not found error.
	NewReleaseNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("release", id)
	}

	// NewInstallNotFoundError creates an install not found error.
	NewInstallNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("install", id)
	}

	// NewResourceNotFoundError creates a resource not found error.
	NewResourceNotFoundError = func(tenantID, resourceID string) *NotFoundError {
		return NewNotFoundError("resource", ResourceKey(tenantID, resourceID))
	}
)

// ConflictError is returned when a declaration duplicates an existing one.
// It is detected before any mutation.
type ConflictError struct {
	ResourceType string
	Message      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.ResourceType, e.Message)
}

// IsConflict checks if an error is or wraps a ConflictError.
func IsConflict(err error) bool {
	var conflictErr *ConflictError
	return errors.As(err, &conflictErr)
}

// NewConflictError creates a ConflictError.
func NewConflictError(resourceType, message string) *ConflictError {
	return &ConflictError{ResourceType: resourceType, Message: message}
}

// ReferentialConflictError is returned when a deletion is blocked by
// existing references. The referenced entity is left untouched.
type ReferentialConflictError struct {
	ResourceType string
	ResourceName string
	ReferencedBy string
	References   int
}

func (e *ReferentialConflictError) Error() string {
	return fmt.Sprintf("%s %s is still referenced by %d %s(s)",
		e.ResourceType, e.ResourceName, e.References, e.ReferencedBy)
}

// IsReferentialConflict checks if an error is or wraps a ReferentialConflictError.
func IsReferentialConflict(err error) bool {
	var refErr *ReferentialConflictError
	return errors.As(err, &refErr)
}

// CollaboratorUnavailableError is returned when an external collaborator
// (the resource inventory) fails. The whole attempt is aborted without
// mutation; redelivery is up to the caller.
type CollaboratorUnavailableError struct {
	Collaborator string
	Operation    string
	Err          error
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable during %s: %v", e.Collaborator, e.Operation, e.Err)
}

func (e *CollaboratorUnavailableError) Unwrap() error {
	return e.Err
}

// IsCollaboratorUnavailable checks if an error is or wraps a CollaboratorUnavailableError.
func IsCollaboratorUnavailable(err error) bool {
	var unavailable *CollaboratorUnavailableError
	return errors.As(err, &unavailable)
}

// NewInventoryUnavailableError wraps a resource inventory failure.
func NewInventoryUnavailableError(operation string, err error) *CollaboratorUnavailableError {
	return &CollaboratorUnavailableError{
		Collaborator: "resource inventory",
		Operation:    operation,
		Err:          err,
	}
}

// InvariantViolationError is returned when the binding store holds more
// than one row for a key that must be unique. It is fatal for the attempt.
type InvariantViolationError struct {
	Key   string
	Count int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %d bindings found for %s, expected at most one", e.Count, e.Key)
}

// IsInvariantViolation checks if an error is or wraps an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var violation *InvariantViolationError
	return errors.As(err, &violation)
}

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation checks if an error is or wraps a ValidationError.
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
