package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/agentcatalog/internal/reconciler"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// statusInterval is the period of the reconcile status line.
const statusInterval = 5 * time.Minute

// runServer runs the manager and the dispatcher until ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func runServer(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return services.Dispatcher.Run(gctx)
	})

	if err := services.Manager.Start(gctx); err != nil {
		stop()
		_ = g.Wait()
		return fmt.Errorf("failed to start reconcile manager: %w", err)
	}

	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logging.Info("Bootstrap", "Reconcile status: %s", statusSummary(services.Manager))
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Bootstrap", "Shutting down (%s)", statusSummary(services.Manager))
		return services.Manager.Stop()
	})

	logging.Info("Bootstrap", "agentcatalog running. Press Ctrl+C to stop.")
	return g.Wait()
}

// statusSummary condenses the manager's queue, per-resource states and
// counters into one log line.
func statusSummary(m *reconciler.Manager) string {
	counts := make(map[reconciler.ReconcileState]int)
	for _, status := range m.GetAllStatuses() {
		counts[status.State]++
	}
	summary := m.Metrics().Summary()

	return fmt.Sprintf("queued=%d pending=%d synced=%d retrying=%d failed=%d handled=%d dropped=%d",
		m.QueueLen(),
		counts[reconciler.StatePending]+counts[reconciler.StateReconciling],
		counts[reconciler.StateSynced],
		counts[reconciler.StateError],
		counts[reconciler.StateFailed],
		summary.Succeeded,
		summary.Dropped)
}
