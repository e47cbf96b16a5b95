// Package queue provides the bounded hand-off between the processing
// loop and the device callback.
//
// Queue has exactly one producer and one consumer. Producer blocks when
// the queue is full, consumer blocks when it's empty. Queue never drops
// or fabricates samples.
package queue

import (
	"context"
	"sync/atomic"
)

// Queue is a bounded FIFO of canonical samples.
type Queue struct {
	samples chan float32
	closed  atomic.Bool
}

// New returns a queue with provided capacity in samples. Capacity less
// than one is treated as one.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		samples: make(chan float32, capacity),
	}
}

// Push adds sample to the queue. It blocks while the queue is full and
// returns context error if context is done before the slot is freed.
func (q *Queue) Push(ctx context.Context, s float32) error {
	select {
	case q.samples <- s:
		return nil
	default:
	}
	select {
	case q.samples <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop removes the oldest sample from the queue. It blocks while the
// queue is empty. It returns false only when the queue is closed and
// drained.
func (q *Queue) Pop() (float32, bool) {
	s, ok := <-q.samples
	return s, ok
}

// TryPop removes the oldest sample if one is available.
func (q *Queue) TryPop() (float32, bool) {
	select {
	case s, ok := <-q.samples:
		return s, ok
	default:
		return 0, false
	}
}

// Close is called by producer when no more samples will be pushed.
// Blocked consumer is released.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.samples)
	}
}

// Closed returns true after producer closed the queue.
func (q *Queue) Closed() bool {
	return q.closed.Load()
}

// Len returns number of queued samples.
func (q *Queue) Len() int {
	return len(q.samples)
}

// Cap returns queue capacity.
func (q *Queue) Cap() int {
	return cap(q.samples)
}
