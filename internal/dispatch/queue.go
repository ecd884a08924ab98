// Package dispatch provides a serial execution context: every function
// submitted to a Queue runs on one goroutine, in submission order.
package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
)

var ErrClosed = errors.New("dispatch queue closed")

// Queue is an unbounded FIFO drained by a single goroutine. Submit never
// blocks, so code already running on the queue may enqueue follow-up work
// without deadlocking.
type Queue struct {
	name string

	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewQueue starts a queue. The name only appears in logs.
func NewQueue(name string) *Queue {
	q := &Queue{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues fn. It reports false when the queue has been closed.
func (q *Queue) Submit(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the queue and waits for it to finish. It must not be
// called from a function already running on the same queue.
func (q *Queue) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !q.Submit(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work. Already queued functions still run; Done is
// closed once they have.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Done is closed after Close once the queue has drained.
func (q *Queue) Done() <-chan struct{} { return q.done }

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			q.exec(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

func (q *Queue) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch %s: task panicked: %v", q.name, r)
		}
	}()
	fn()
}
