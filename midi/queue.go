package midi

import (
	"fmt"
	"strings"
	"sync"

	"pipelined.dev/livehost/metric"
)

// Overflow defines what happens when bounded queue is full.
type Overflow int

const (
	// Unbounded queue never drops events and grows as needed.
	Unbounded Overflow = iota
	// DropOldest discards the oldest pending event.
	DropOldest
	// DropNewest discards the incoming event.
	DropNewest
)

const defaultBacklog = 64

// ParseOverflow returns bounded overflow policy for its name.
func ParseOverflow(s string) (Overflow, error) {
	switch strings.ToLower(s) {
	case "oldest":
		return DropOldest, nil
	case "newest":
		return DropNewest, nil
	case "", "none", "unbounded":
		return Unbounded, nil
	}
	return 0, fmt.Errorf("unknown overflow policy: %q", s)
}

// Queue hands events off from a single producer to a single consumer.
// Push never blocks beyond the short critical section.
type Queue struct {
	overflow Overflow
	capacity int

	mu      sync.Mutex
	pending []Event
	dropped uint64
	drops   func(int64)
}

// NewQueue returns event queue. Capacity is ignored for unbounded queues.
func NewQueue(overflow Overflow, capacity int) *Queue {
	q := &Queue{
		overflow: overflow,
		capacity: capacity,
	}
	if overflow == Unbounded || capacity <= 0 {
		q.overflow = Unbounded
		q.capacity = 0
		q.pending = make([]Event, 0, defaultBacklog)
	} else {
		q.pending = make([]Event, 0, capacity)
	}
	q.drops = metric.Counter(q, metric.DroppedCounter)
	return q
}

// Push adds event to the queue. It returns false if event or the oldest
// event was dropped because of overflow.
func (q *Queue) Push(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.overflow == Unbounded || len(q.pending) < q.capacity {
		q.pending = append(q.pending, e)
		return true
	}
	q.dropped++
	q.drops(1)
	if q.overflow == DropOldest {
		copy(q.pending, q.pending[1:])
		q.pending[len(q.pending)-1] = e
	}
	return false
}

// Drain appends all pending events to dst in arrival order and empties
// the queue. It never blocks on the producer.
func (q *Queue) Drain(dst []Event) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	dst = append(dst, q.pending...)
	q.pending = q.pending[:0]
	return dst
}

// Len returns number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped returns number of events lost due to overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
