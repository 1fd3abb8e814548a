package reconciler

import (
	"context"
	"sync"
	"time"
)

// keyedQueue is a FIFO of resource events that hands out at most one event
// per key at a time. Events for the same key are never coalesced and are
// returned in the order they were added. A key stays blocked while one of
// its events is being processed or waiting for redelivery.
type keyedQueue struct {
	mu sync.Mutex

	// ready holds keys with pending events that are not blocked, in FIFO order.
	ready []string

	// pending holds the queued events per key.
	pending map[string][]request

	// busy marks keys whose head event is out for processing or redelivery.
	busy map[string]bool

	timers map[string]*time.Timer

	cond *sync.Cond

	shuttingDown bool
}

func newKeyedQueue() *keyedQueue {
	q := &keyedQueue{
		pending: make(map[string][]request),
		busy:    make(map[string]bool),
		timers:  make(map[string]*time.Timer),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add appends a request behind any earlier request for the same key.
func (q *keyedQueue) Add(req request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	key := req.key()
	q.pending[key] = append(q.pending[key], req)

	// A key with earlier pending events is already ready or busy.
	if len(q.pending[key]) == 1 && !q.busy[key] {
		q.ready = append(q.ready, key)
		q.cond.Signal()
	}
}

// Get returns the next request, blocking until one is available, the
// context is cancelled or the queue shuts down.
func (q *keyedQueue) Get(ctx context.Context) (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.ready) == 0 && !q.shuttingDown {
		select {
		case <-ctx.Done():
			return request{}, false
		default:
		}

		// Wake the wait on cancellation; done releases the helper otherwise.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		select {
		case <-ctx.Done():
			return request{}, false
		default:
		}
	}

	if q.shuttingDown {
		return request{}, false
	}

	key := q.ready[0]
	q.ready = q.ready[1:]

	events := q.pending[key]
	req := events[0]
	if len(events) == 1 {
		delete(q.pending, key)
	} else {
		q.pending[key] = events[1:]
	}
	q.busy[key] = true

	return req, true
}

// Done releases the key of a processed request.
func (q *keyedQueue) Done(req request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.releaseLocked(req.key())
}

// Retry puts req back at the head of its key after delay. The key stays
// blocked in the meantime so later events cannot overtake it.
func (q *keyedQueue) Retry(req request, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	key := req.key()
	q.timers[key] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		delete(q.timers, key)
		if q.shuttingDown {
			return
		}
		q.pending[key] = append([]request{req}, q.pending[key]...)
		q.releaseLocked(key)
	})
}

func (q *keyedQueue) releaseLocked(key string) {
	delete(q.busy, key)
	if len(q.pending[key]) > 0 {
		q.ready = append(q.ready, key)
		q.cond.Signal()
	}
}

// Len returns the number of queued requests, including those waiting for
// redelivery.
func (q *keyedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.timers)
	for _, events := range q.pending {
		n += len(events)
	}
	return n
}

// Shutdown stops the queue and cancels pending redeliveries.
func (q *keyedQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shuttingDown = true
	for key, timer := range q.timers {
		timer.Stop()
		delete(q.timers, key)
	}
	q.cond.Broadcast()
}
