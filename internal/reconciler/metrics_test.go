package reconciler

import (
	"testing"

	"github.com/giantswarm/agentcatalog/internal/api"
)

func TestMetrics_NewInstance(t *testing.T) {
	metrics := NewMetrics()
	if metrics == nil {
		t.Fatal("expected non-nil metrics instance")
	}
	summary := metrics.Summary()
	if summary.Received != 0 || summary.Succeeded != 0 || summary.Failed != 0 {
		t.Errorf("expected zero counters, got %+v", summary)
	}
	if summary.FailureRate != 0 {
		t.Errorf("expected zero failure rate without attempts, got %f", summary.FailureRate)
	}
}

func TestMetrics_RecordSuccess(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordReceived()
	metrics.RecordSuccess(Outcome{
		Path:          PathConverge,
		Notifications: []api.Notification{{Seq: 1}, {Seq: 2}},
	})
	metrics.RecordSuccess(Outcome{Path: PathIgnored})

	summary := metrics.Summary()
	if summary.Received != 1 {
		t.Errorf("expected Received=1, got %d", summary.Received)
	}
	if summary.Succeeded != 2 {
		t.Errorf("expected Succeeded=2, got %d", summary.Succeeded)
	}
	if summary.Notifications != 2 {
		t.Errorf("expected Notifications=2, got %d", summary.Notifications)
	}
	if summary.PerPath[PathConverge] != 1 || summary.PerPath[PathIgnored] != 1 {
		t.Errorf("unexpected per-path counts %v", summary.PerPath)
	}
	if summary.LastSuccessAt.IsZero() {
		t.Error("expected LastSuccessAt to be set")
	}
}

func TestMetrics_RecordFailure(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordFailure("acme:web-1", true)
	metrics.RecordFailure("acme:web-1", false)
	metrics.RecordSuccess(Outcome{Path: PathReplay})

	summary := metrics.Summary()
	if summary.Failed != 2 {
		t.Errorf("expected Failed=2, got %d", summary.Failed)
	}
	if summary.Retried != 1 {
		t.Errorf("expected Retried=1, got %d", summary.Retried)
	}
	if summary.Dropped != 1 {
		t.Errorf("expected Dropped=1, got %d", summary.Dropped)
	}
	if summary.LastFailureAt.IsZero() {
		t.Error("expected LastFailureAt to be set")
	}

	expected := 2.0 / 3.0
	if summary.FailureRate != expected {
		t.Errorf("expected FailureRate=%f, got %f", expected, summary.FailureRate)
	}
}

func TestMetrics_SummaryIsACopy(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordSuccess(Outcome{Path: PathUnbindAll})

	summary := metrics.Summary()
	summary.PerPath[PathUnbindAll] = 42

	if got := metrics.Summary().PerPath[PathUnbindAll]; got != 1 {
		t.Errorf("mutating a summary changed the metrics: got %d", got)
	}
}
