package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/giantswarm/agentcatalog/internal/api"
)

type recordingSource struct {
	name     string
	startErr error
	log      *[]string
}

func (s *recordingSource) Start(ctx context.Context, events chan<- api.ResourceEvent) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start "+s.name)
	return nil
}

func (s *recordingSource) Stop() error {
	*s.log = append(*s.log, "stop "+s.name)
	return nil
}

func TestMultiSource_StartStop(t *testing.T) {
	var log []string
	m := NewMultiSource(&recordingSource{name: "a", log: &log}, nil, &recordingSource{name: "b", log: &log})

	if err := m.Start(context.Background(), make(chan api.ResourceEvent)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"start a", "start b", "stop b", "stop a"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("step %d: expected %q, got %q", i, want[i], log[i])
		}
	}
}

func TestMultiSource_StartFailureStopsStarted(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	m := NewMultiSource(&recordingSource{name: "a", log: &log}, &recordingSource{name: "b", startErr: boom, log: &log})

	err := m.Start(context.Background(), make(chan api.ResourceEvent))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(log) != 2 || log[0] != "start a" || log[1] != "stop a" {
		t.Errorf("expected a to be started and stopped, got %v", log)
	}
}
