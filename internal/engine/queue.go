package engine

import (
	"context"
	"sync"
)

// pending is one submitted action waiting to be folded.
type pending[S any] struct {
	id     string
	batch  string
	action any
	ctx    context.Context
	done   chan Receipt[S] // buffered, size 1
}

// actionQueue is a thread-safe FIFO queue of pending actions.
//
// The queue is unbounded: effects may submit further actions while a drain
// is running, and those must never block the drainer.
type actionQueue[S any] struct {
	mu     sync.Mutex
	items  []*pending[S]
	closed bool
}

// newActionQueue creates an empty action queue.
func newActionQueue[S any]() *actionQueue[S] {
	return &actionQueue[S]{
		items: make([]*pending[S], 0, 16),
	}
}

// Enqueue appends the items to the back of the queue as one contiguous run.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *actionQueue[S]) Enqueue(items ...*pending[S]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, items...)
	return true
}

// TryDequeue removes and returns the front item without blocking.
// Returns (nil, false) if the queue is empty.
func (q *actionQueue[S]) TryDequeue() (*pending[S], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	p := q.items[0]

	// Nil out the slot so the backing array does not retain the action.
	q.items[0] = nil
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return p, true
}

// Len returns the current queue length.
func (q *actionQueue[S]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further enqueues. Items already queued are still drained.
func (q *actionQueue[S]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Closed reports whether Close has been called.
func (q *actionQueue[S]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
