package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// Manager feeds resource events into an EventHandler.
//
// It manages:
//   - An optional EventSource
//   - A keyed work queue that serialises events per resource
//   - A worker pool
//   - Redelivery with exponential backoff for collaborator outages
type Manager struct {
	mu sync.RWMutex

	config ManagerConfig

	handler EventHandler

	// source produces events; nil when events only arrive through Submit
	source EventSource

	queue *keyedQueue

	// statusTracker tracks reconcile status per tenant:resource key
	statusTracker map[string]*ResourceStatus

	metrics *Metrics

	events chan api.ResourceEvent

	ctx        context.Context
	cancelFunc context.CancelFunc

	wg sync.WaitGroup

	running bool
}

// NewManager creates a Manager. source may be nil.
func NewManager(handler EventHandler, source EventSource, config ManagerConfig) *Manager {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 2
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 5 * time.Minute
	}
	if config.EventTimeout <= 0 {
		config.EventTimeout = 30 * time.Second
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 100
	}

	return &Manager{
		config:        config,
		handler:       handler,
		source:        source,
		queue:         newKeyedQueue(),
		statusTracker: make(map[string]*ResourceStatus),
		metrics:       NewMetrics(),
		events:        make(chan api.ResourceEvent, config.EventBuffer),
	}
}

// Start starts the event source and the workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.ctx, m.cancelFunc = context.WithCancel(ctx)
	m.running = true
	m.mu.Unlock()

	if m.source != nil {
		if err := m.source.Start(m.ctx, m.events); err != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			m.cancelFunc()
			return fmt.Errorf("failed to start event source: %w", err)
		}
	}

	m.wg.Add(1)
	go m.processEvents()

	for i := 0; i < m.config.WorkerCount; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	logging.Info("ReconcileManager", "Started with %d workers", m.config.WorkerCount)
	return nil
}

// Submit enqueues an event directly. It is how external event streams feed
// the manager.
func (m *Manager) Submit(ev api.ResourceEvent) {
	m.metrics.RecordReceived()
	m.updateStatus(ev.TenantID, ev.ResourceID, StatePending, "", "")
	m.queue.Add(request{Event: ev, Attempt: 1})
}

func (m *Manager) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case ev, ok := <-m.events:
			if !ok {
				return
			}
			logging.Debug("ReconcileManager", "Received event for %s", ev.Key())
			m.Submit(ev)
		}
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()

	logging.Debug("ReconcileManager", "Worker %d started", id)

	for {
		req, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug("ReconcileManager", "Worker %d shutting down", id)
			return
		}

		if m.processRequest(req) {
			m.queue.Done(req)
		}
	}
}

// processRequest handles one request. It returns false when the request was
// scheduled for redelivery, in which case its key stays blocked.
func (m *Manager) processRequest(req request) bool {
	ev := req.Event
	m.updateStatus(ev.TenantID, ev.ResourceID, StateReconciling, "", "")

	logging.Debug("ReconcileManager", "Handling event for %s (attempt %d)", ev.Key(), req.Attempt)

	ctx, cancel := context.WithTimeout(m.ctx, m.config.EventTimeout)
	defer cancel()

	out, err := m.handler.HandleResourceEvent(ctx, ev)
	if err == nil {
		m.metrics.RecordSuccess(out)
		m.updateStatus(ev.TenantID, ev.ResourceID, StateSynced, out.Path, "")
		return true
	}

	if m.ctx.Err() != nil {
		return true
	}

	if !retryable(err) || req.Attempt >= m.config.MaxRetries {
		logging.Error("ReconcileManager", err, "Dropping event for %s after %d attempts", ev.Key(), req.Attempt)
		m.metrics.RecordFailure(ev.Key(), false)
		m.updateStatus(ev.TenantID, ev.ResourceID, StateFailed, "", err.Error())
		return true
	}

	backoff := m.calculateBackoff(req.Attempt)
	logging.Warn("ReconcileManager", "Event for %s failed, redelivering after %v (attempt %d): %v",
		ev.Key(), backoff, req.Attempt+1, err)

	m.metrics.RecordFailure(ev.Key(), true)
	m.updateStatus(ev.TenantID, ev.ResourceID, StateError, "", err.Error())

	req.Attempt++
	req.LastError = err
	m.queue.Retry(req, backoff)
	return false
}

// retryable reports whether redelivery can succeed. Only collaborator
// outages and timeouts qualify.
func retryable(err error) bool {
	return api.IsCollaboratorUnavailable(err) || errors.Is(err, context.DeadlineExceeded)
}

// calculateBackoff computes exponential backoff capped at MaxBackoff.
func (m *Manager) calculateBackoff(attempt int) time.Duration {
	backoff := m.config.InitialBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > m.config.MaxBackoff || backoff <= 0 {
		backoff = m.config.MaxBackoff
	}
	return backoff
}

func (m *Manager) updateStatus(tenantID, resourceID string, state ReconcileState, path Path, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := api.ResourceKey(tenantID, resourceID)
	status, ok := m.statusTracker[key]
	if !ok {
		status = &ResourceStatus{TenantID: tenantID, ResourceID: resourceID}
		m.statusTracker[key] = status
	}

	status.State = state
	status.LastError = errMsg

	switch state {
	case StateSynced:
		now := time.Now()
		status.LastReconcileTime = &now
		status.LastPath = path
		status.RetryCount = 0
	case StateError:
		status.RetryCount++
	}
}

// Stop stops the event source, drains the workers and cancels pending
// redeliveries.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	logging.Info("ReconcileManager", "Stopping reconcile manager...")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.source != nil {
		if err := m.source.Stop(); err != nil {
			logging.Error("ReconcileManager", err, "Error stopping event source")
		}
	}

	m.queue.Shutdown()
	m.wg.Wait()

	logging.Info("ReconcileManager", "Reconcile manager stopped")
	return nil
}

// GetStatus returns a copy of the status of one resource.
func (m *Manager) GetStatus(tenantID, resourceID string) (ResourceStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statusTracker[api.ResourceKey(tenantID, resourceID)]
	if !ok {
		return ResourceStatus{}, false
	}
	return *status, true
}

// GetAllStatuses returns every tracked status.
func (m *Manager) GetAllStatuses() []ResourceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]ResourceStatus, 0, len(m.statusTracker))
	for _, status := range m.statusTracker {
		statuses = append(statuses, *status)
	}
	return statuses
}

// Metrics returns the manager's counters.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// IsRunning returns whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// QueueLen returns the number of events waiting to be handled.
func (m *Manager) QueueLen() int {
	return m.queue.Len()
}
