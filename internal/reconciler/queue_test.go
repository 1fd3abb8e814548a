package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/giantswarm/agentcatalog/internal/api"
)

func event(tenant, resource string) api.ResourceEvent {
	return api.ResourceEvent{TenantID: tenant, ResourceID: resource, LabelsChanged: true}
}

func TestKeyedQueue_AddAndGet(t *testing.T) {
	q := newKeyedQueue()
	q.Add(request{Event: event("t1", "r1"), Attempt: 1})

	if q.Len() != 1 {
		t.Errorf("expected queue length 1, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}
	if got.key() != "t1:r1" {
		t.Errorf("got unexpected request: %+v", got)
	}
	q.Done(got)

	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestKeyedQueue_KeepsEveryEventInOrder(t *testing.T) {
	q := newKeyedQueue()

	first := event("t1", "r1")
	second := event("t1", "r1")
	second.Deleted = true

	q.Add(request{Event: first, Attempt: 1})
	q.Add(request{Event: second, Attempt: 1})

	if q.Len() != 2 {
		t.Fatalf("expected both events queued, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, _ := q.Get(ctx)
	if got.Event.Deleted {
		t.Fatal("expected the first event first")
	}

	// The key is busy, so a second Get must not hand out the later event.
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	if _, ok := q.Get(shortCtx); ok {
		t.Fatal("expected the key to stay blocked while its event is processed")
	}

	q.Done(got)

	got, ok := q.Get(ctx)
	if !ok || !got.Event.Deleted {
		t.Fatalf("expected the second event after Done, got %+v", got)
	}
	q.Done(got)
}

func TestKeyedQueue_DifferentKeysInterleave(t *testing.T) {
	q := newKeyedQueue()
	q.Add(request{Event: event("t1", "r1")})
	q.Add(request{Event: event("t1", "r1")})
	q.Add(request{Event: event("t1", "r2")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, _ := q.Get(ctx)
	b, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected a second key to be available")
	}
	if a.key() == b.key() {
		t.Errorf("expected distinct keys, got %s twice", a.key())
	}
}

func TestKeyedQueue_RetryStaysAheadOfLaterEvents(t *testing.T) {
	q := newKeyedQueue()
	q.Add(request{Event: event("t1", "r1"), Attempt: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, _ := q.Get(ctx)

	later := event("t1", "r1")
	later.Deleted = true
	q.Add(request{Event: later, Attempt: 1})

	got.Attempt++
	q.Retry(got, 20*time.Millisecond)

	retried, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected the retried event")
	}
	if retried.Attempt != 2 || retried.Event.Deleted {
		t.Fatalf("expected the retried event before the later one, got %+v", retried)
	}
	q.Done(retried)

	next, ok := q.Get(ctx)
	if !ok || !next.Event.Deleted {
		t.Fatalf("expected the later event, got %+v", next)
	}
}

func TestKeyedQueue_Shutdown(t *testing.T) {
	q := newKeyedQueue()

	done := make(chan bool)
	go func() {
		_, ok := q.Get(context.Background())
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Get to return false after shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after shutdown")
	}

	q.Add(request{Event: event("t1", "r1")})
	if q.Len() != 0 {
		t.Error("expected Add to be ignored after shutdown")
	}
}

func TestKeyedQueue_ContextCancellation(t *testing.T) {
	q := newKeyedQueue()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := q.Get(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Get to return false after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after cancellation")
	}
}
