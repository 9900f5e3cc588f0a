package collab

import (
	"sync"

	"github.com/cowork-labs/coedit/internal/ot"
)

// EventType distinguishes broadcast event kinds.
type EventType int

const (
	// EventCommit carries a committed operation to a non-originating
	// session.
	EventCommit EventType = iota + 1
	// EventAck acknowledges the originator's own operation.
	EventAck
)

// Event is one entry on a session's delivery queue.
type Event struct {
	Type EventType

	// Revision is the revision the operation committed as.
	Revision int

	// Op is the committed, fully transformed operation (EventCommit).
	Op ot.Operation

	// OpID is the acknowledged operation id (EventAck).
	OpID string
}

// Queue is an unbounded FIFO delivery queue, one per subscribed session.
//
// Broadcasting is fire-and-forget relative to committing: the commit path
// only appends here and never waits, so a slow or stalled consumer cannot
// block other sessions' commits. The queue is unbounded for the same
// reason - backpressure on the commit path would reintroduce the blocking
// the design forbids; a consumer that never drains is torn down by its
// transport, which closes the queue.
//
// A channel signals availability so consumers can wait with context
// cancellation in a select.
type Queue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered size 1, coalesces wakeups
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends an event. Safe from any goroutine; never blocks.
// Returns false if the queue has been closed.
func (q *Queue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front event without blocking.
// Returns (Event{}, false) when the queue is empty.
func (q *Queue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events[0] = Event{} // release the payload for GC
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // TryDequeue in a loop
//	}
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close marks the queue closed and wakes all waiters. Enqueue after Close
// is a no-op; already-queued events remain dequeueable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
