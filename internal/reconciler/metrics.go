package reconciler

import (
	"sync"
	"time"

	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// Metrics counts event handling activity. It is kept in memory and
// exposed through Summary for logs and the CLI.
type Metrics struct {
	mu sync.RWMutex

	perPath map[Path]int64

	received      int64
	succeeded     int64
	failed        int64
	retried       int64
	dropped       int64
	notifications int64

	lastSuccessAt time.Time
	lastFailureAt time.Time
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{perPath: make(map[Path]int64)}
}

// RecordReceived records an event entering the queue.
func (m *Metrics) RecordReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received++
}

// RecordSuccess records a handled event and the notifications it produced.
func (m *Metrics) RecordSuccess(out Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.succeeded++
	m.perPath[out.Path]++
	m.notifications += int64(len(out.Notifications))
	m.lastSuccessAt = time.Now()
}

// RecordFailure records a failed attempt. retrying reports whether the
// event will be redelivered.
func (m *Metrics) RecordFailure(key string, retrying bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed++
	m.lastFailureAt = time.Now()
	if retrying {
		m.retried++
		return
	}
	m.dropped++

	logging.Warn("ReconcileManager", "Dropped event for %s (dropped total: %d)", key, m.dropped)
}

// MetricsSummary is a point-in-time copy of Metrics.
type MetricsSummary struct {
	Received      int64          `json:"received"`
	Succeeded     int64          `json:"succeeded"`
	Failed        int64          `json:"failed"`
	Retried       int64          `json:"retried"`
	Dropped       int64          `json:"dropped"`
	Notifications int64          `json:"notifications"`
	PerPath       map[Path]int64 `json:"per_path"`
	LastSuccessAt time.Time      `json:"last_success_at,omitempty"`
	LastFailureAt time.Time      `json:"last_failure_at,omitempty"`
	FailureRate   float64        `json:"failure_rate"`
}

// Summary returns a copy of the current counters.
func (m *Metrics) Summary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	perPath := make(map[Path]int64, len(m.perPath))
	for p, n := range m.perPath {
		perPath[p] = n
	}

	s := MetricsSummary{
		Received:      m.received,
		Succeeded:     m.succeeded,
		Failed:        m.failed,
		Retried:       m.retried,
		Dropped:       m.dropped,
		Notifications: m.notifications,
		PerPath:       perPath,
		LastSuccessAt: m.lastSuccessAt,
		LastFailureAt: m.lastFailureAt,
	}
	if attempts := m.succeeded + m.failed; attempts > 0 {
		s.FailureRate = float64(m.failed) / float64(attempts)
	}
	return s
}
