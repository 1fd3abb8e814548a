package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/agentcatalog/internal/api"
)

// MultiSource runs several event sources into one channel.
type MultiSource struct {
	sources []EventSource
	started []EventSource
}

// NewMultiSource combines sources. Nil entries are skipped.
func NewMultiSource(sources ...EventSource) *MultiSource {
	m := &MultiSource{}
	for _, s := range sources {
		if s != nil {
			m.sources = append(m.sources, s)
		}
	}
	return m
}

// Start starts every source. If one fails, the ones already started are
// stopped again.
func (m *MultiSource) Start(ctx context.Context, events chan<- api.ResourceEvent) error {
	for i, s := range m.sources {
		if err := s.Start(ctx, events); err != nil {
			m.Stop()
			return fmt.Errorf("event source %d: %w", i, err)
		}
		m.started = append(m.started, s)
	}
	return nil
}

// Stop stops the started sources in reverse order.
func (m *MultiSource) Stop() error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		if err := m.started[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	m.started = nil
	return errors.Join(errs...)
}
