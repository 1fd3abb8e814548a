// Package selector evaluates Install label selectors against resource
// labels.
//
// A Selector is a set of required label pairs combined with AND or OR.
// Matching is a pure predicate; the bulk form (Index and Tally) finds every
// matching install for one resource from per-pair hit counts instead of
// scanning the whole catalog.
package selector

import (
	"fmt"
	"maps"
	"strings"

	"k8s.io/apimachinery/pkg/labels"

	"github.com/giantswarm/agentcatalog/internal/api"
)

// ParseMethod converts user input into a SelectorMethod. Empty input
// defaults to AND.
func ParseMethod(s string) (api.SelectorMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(api.SelectorMethodAnd):
		return api.SelectorMethodAnd, nil
	case string(api.SelectorMethodOr):
		return api.SelectorMethodOr, nil
	default:
		return "", api.NewValidationError("labelSelectorMethod", fmt.Sprintf("unknown method %q, expected AND or OR", s))
	}
}

// Selector is the label predicate of an Install.
type Selector struct {
	Labels labels.Set
	Method api.SelectorMethod
}

// New builds a Selector, defaulting an empty method to AND.
func New(pairs map[string]string, method api.SelectorMethod) Selector {
	if method == "" {
		method = api.SelectorMethodAnd
	}
	return Selector{Labels: labels.Set(pairs), Method: method}
}

// FromInstall returns the selector declared by an Install.
func FromInstall(install api.Install) Selector {
	return New(install.Selector, install.Method)
}

// Empty reports whether the selector matches every resource.
func (s Selector) Empty() bool {
	return len(s.Labels) == 0
}

// Size is the number of label pairs in the selector.
func (s Selector) Size() int {
	return len(s.Labels)
}

// Matches evaluates the selector against a resource's labels.
func (s Selector) Matches(resourceLabels map[string]string) bool {
	if s.Empty() {
		return true
	}
	set := labels.Set(resourceLabels)

	if s.Method == api.SelectorMethodOr {
		for key, value := range s.Labels {
			if set.Has(key) && set.Get(key) == value {
				return true
			}
		}
		return false
	}

	return labels.SelectorFromSet(s.Labels).Matches(set)
}

// Equal reports whether two selectors carry the same label pairs. The
// method is not part of the comparison: two installs of one release with
// the same pairs are duplicates regardless of method.
func (s Selector) Equal(o Selector) bool {
	return maps.Equal(s.Labels, o.Labels)
}

// String renders the selector in canonical sorted form, e.g.
// "AND(env=prod,os=linux)".
func (s Selector) String() string {
	return fmt.Sprintf("%s(%s)", s.Method, s.Labels.String())
}

// Validate checks the method and rejects empty label keys.
func (s Selector) Validate() error {
	if s.Method != api.SelectorMethodAnd && s.Method != api.SelectorMethodOr {
		return api.NewValidationError("labelSelectorMethod", fmt.Sprintf("unknown method %q", s.Method))
	}
	for key := range s.Labels {
		if strings.TrimSpace(key) == "" {
			return api.NewValidationError("labelSelector", "label keys must not be empty")
		}
	}
	return nil
}
