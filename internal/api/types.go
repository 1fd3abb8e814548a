package api

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// AgentType identifies the monitoring agent a Release packages.
type AgentType string

const (
	// AgentTypeTelegraf is the metrics collection agent.
	AgentTypeTelegraf AgentType = "TELEGRAF"

	// AgentTypeFilebeat is the log shipping agent.
	AgentTypeFilebeat AgentType = "FILEBEAT"
)

// KnownAgentTypes lists every agent type a Release may declare.
var KnownAgentTypes = []AgentType{AgentTypeTelegraf, AgentTypeFilebeat}

// ParseAgentType converts user input into a known AgentType. Matching is
// case-insensitive.
func ParseAgentType(s string) (AgentType, error) {
	candidate := AgentType(strings.ToUpper(strings.TrimSpace(s)))
	if slices.Contains(KnownAgentTypes, candidate) {
		return candidate, nil
	}
	return "", NewValidationError("agentType", fmt.Sprintf("unknown agent type %q", s))
}

// SelectorMethod controls how an Install's label selector is evaluated.
type SelectorMethod string

const (
	// SelectorMethodAnd requires every selector pair to be present on the resource.
	SelectorMethodAnd SelectorMethod = "AND"

	// SelectorMethodOr requires at least one selector pair to be present on the resource.
	SelectorMethodOr SelectorMethod = "OR"
)

// Release is a specific versioned build of a monitoring agent. Releases are
// immutable once created.
type Release struct {
	ID        string            `json:"id" yaml:"id"`
	AgentType AgentType         `json:"agentType" yaml:"agentType"`
	Version   string            `json:"version" yaml:"version"`
	Labels    map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	URL       string            `json:"url" yaml:"url"`
	Exe       string            `json:"exe" yaml:"exe"`
	CreatedAt time.Time         `json:"createdAt" yaml:"createdAt"`
}

// Install is a tenant's declaration that resources matching Selector should
// run the referenced Release. An empty Selector matches every resource of
// the tenant.
type Install struct {
	ID        string            `json:"id" yaml:"id"`
	TenantID  string            `json:"tenantId" yaml:"tenantId"`
	ReleaseID string            `json:"releaseId" yaml:"releaseId"`
	Selector  map[string]string `json:"labelSelector" yaml:"labelSelector"`
	Method    SelectorMethod    `json:"labelSelectorMethod" yaml:"labelSelectorMethod"`
	CreatedAt time.Time         `json:"createdAt" yaml:"createdAt"`
}

// Binding is the resolved assignment of one Install to one resource for one
// agent type. Bindings are only ever produced by the reconciler.
type Binding struct {
	ID         string    `json:"id" yaml:"id"`
	TenantID   string    `json:"tenantId" yaml:"tenantId"`
	ResourceID string    `json:"resourceId" yaml:"resourceId"`
	AgentType  AgentType `json:"agentType" yaml:"agentType"`
	InstallID  string    `json:"installId" yaml:"installId"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
}

// Resource is the inventory's view of a monitored resource. It is read-only
// to agentcatalog.
type Resource struct {
	TenantID         string            `json:"tenantId" yaml:"tenantId"`
	ResourceID       string            `json:"resourceId" yaml:"resourceId"`
	Labels           map[string]string `json:"labels" yaml:"labels"`
	ExecutionAgentID string            `json:"executionAgentId,omitempty" yaml:"executionAgentId,omitempty"`
}

// HasExecutionAgent reports whether the resource is connected through an
// execution agent. Bindings only apply to such resources.
func (r Resource) HasExecutionAgent() bool {
	return r.ExecutionAgentID != ""
}

// ResourceEvent is an inbound resource lifecycle event.
type ResourceEvent struct {
	TenantID                   string `json:"tenantId"`
	ResourceID                 string `json:"resourceId"`
	Deleted                    bool   `json:"deleted"`
	LabelsChanged              bool   `json:"labelsChanged"`
	ReattachedExecutionAgentID string `json:"reattachedExecutionAgentId,omitempty"`
}

// Reattached reports whether the resource's execution agent reconnected.
func (e ResourceEvent) Reattached() bool {
	return e.ReattachedExecutionAgentID != ""
}

// Key returns the per-resource ordering key.
func (e ResourceEvent) Key() string {
	return ResourceKey(e.TenantID, e.ResourceID)
}

// Operation is the kind of change a Notification announces.
type Operation string

const (
	// OperationUpsert announces a new, replaced or re-announced binding.
	OperationUpsert Operation = "UPSERT"

	// OperationDelete announces that an agent type is no longer bound.
	OperationDelete Operation = "DELETE"
)

// Notification is one outbound change notification for a
// (tenant, resource, agent type). Seq is assigned by the outbox on insert
// and is stable across redelivery.
type Notification struct {
	Seq        int64     `json:"seq" yaml:"seq"`
	TenantID   string    `json:"tenantId" yaml:"tenantId"`
	ResourceID string    `json:"resourceId" yaml:"resourceId"`
	AgentType  AgentType `json:"agentType" yaml:"agentType"`
	Op         Operation `json:"op" yaml:"op"`
	InstallID  string    `json:"installId,omitempty" yaml:"installId,omitempty"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	Attempts   int       `json:"-" yaml:"-"`
}

// Key returns the message key used to keep per-resource ordering at a
// downstream consumer.
func (n Notification) Key() string {
	return ResourceKey(n.TenantID, n.ResourceID)
}

// ResourceKey builds the tenantId:resourceId key.
func ResourceKey(tenantID, resourceID string) string {
	return tenantID + ":" + resourceID
}
