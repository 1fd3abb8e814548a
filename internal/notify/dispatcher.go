package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// Outbox is the store side the dispatcher consumes. *store.Store
// implements it.
type Outbox interface {
	PendingNotifications(ctx context.Context, limit int) ([]api.Notification, error)
	MarkDelivered(ctx context.Context, seq int64) error
	MarkFailed(ctx context.Context, seq int64, cause error) error
	PurgeDelivered(ctx context.Context, olderThan time.Time) (int, error)
}

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	// PollInterval is the delay between passes when not woken.
	// Defaults to 1s.
	PollInterval time.Duration

	// BatchSize is the maximum number of rows read per pass. Defaults to 100.
	BatchSize int

	// Retention is how long delivered rows are kept. Zero disables purging.
	Retention time.Duration

	// PurgeInterval is the delay between purges. Defaults to 1h.
	PurgeInterval time.Duration
}

// Dispatcher moves notifications from the outbox to a Publisher.
type Dispatcher struct {
	outbox    Outbox
	publisher Publisher
	config    DispatcherConfig

	wake chan struct{}

	delivered atomic.Int64
	failures  atomic.Int64
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(outbox Outbox, publisher Publisher, config DispatcherConfig) *Dispatcher {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PurgeInterval <= 0 {
		config.PurgeInterval = time.Hour
	}
	return &Dispatcher{
		outbox:    outbox,
		publisher: publisher,
		config:    config,
		wake:      make(chan struct{}, 1),
	}
}

// Wake requests an immediate pass. It never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run dispatches until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	logging.Info("Dispatcher", "Started (poll every %v, batch %d)", d.config.PollInterval, d.config.BatchSize)

	poll := time.NewTicker(d.config.PollInterval)
	defer poll.Stop()

	var purge <-chan time.Time
	if d.config.Retention > 0 {
		t := time.NewTicker(d.config.PurgeInterval)
		defer t.Stop()
		purge = t.C
	}

	for {
		d.drain(ctx)

		select {
		case <-ctx.Done():
			logging.Info("Dispatcher", "Stopped (%d delivered, %d failed attempts)", d.delivered.Load(), d.failures.Load())
			return nil
		case <-poll.C:
		case <-d.wake:
		case <-purge:
			d.purge(ctx)
		}
	}
}

// drain runs passes until the outbox is empty or a pass fails.
func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := d.DispatchOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logging.Warn("Dispatcher", "Dispatch pass stopped: %v", err)
			}
			return
		}
		if n < d.config.BatchSize {
			return
		}
	}
}

// DispatchOnce publishes up to one batch of pending notifications in
// sequence order and returns how many were delivered. It stops at the
// first failure.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	pending, err := d.outbox.PendingNotifications(ctx, d.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("read outbox: %w", err)
	}

	delivered := 0
	for _, n := range pending {
		if err := d.publisher.Publish(ctx, n); err != nil {
			d.failures.Add(1)
			if markErr := d.outbox.MarkFailed(ctx, n.Seq, err); markErr != nil {
				logging.Error("Dispatcher", markErr, "Failed to record failed attempt for notification %d", n.Seq)
			}
			return delivered, fmt.Errorf("publish notification %d for %s: %w", n.Seq, n.Key(), err)
		}
		if err := d.outbox.MarkDelivered(ctx, n.Seq); err != nil {
			return delivered, fmt.Errorf("mark notification %d delivered: %w", n.Seq, err)
		}
		d.delivered.Add(1)
		delivered++
	}
	return delivered, nil
}

func (d *Dispatcher) purge(ctx context.Context) {
	removed, err := d.outbox.PurgeDelivered(ctx, time.Now().Add(-d.config.Retention))
	if err != nil {
		logging.Error("Dispatcher", err, "Failed to purge delivered notifications")
		return
	}
	if removed > 0 {
		logging.Info("Dispatcher", "Purged %d delivered notifications", removed)
	}
}

// Delivered returns the number of notifications delivered since start.
func (d *Dispatcher) Delivered() int64 {
	return d.delivered.Load()
}
