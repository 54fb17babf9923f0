package engine

import "sync"

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeInitialize builds the document and replays queued actions.
	EventTypeInitialize EventType = iota + 1
	// EventTypeAction is an action request.
	EventTypeAction
	// EventTypeTerminate discards the document and pending actions.
	EventTypeTerminate
)

func (t EventType) String() string {
	switch t {
	case EventTypeInitialize:
		return "initialize"
	case EventTypeAction:
		return "action"
	case EventTypeTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the Run loop.
type Event struct {
	Type   EventType
	Action *ActionRequest

	// Reply, when set, receives the outcome. It should be buffered.
	Reply chan<- EventResult
}

// EventResult is the outcome of an event.
type EventResult struct {
	// Record is set for processed actions.
	Record *ActionRecord

	// Queued reports an action held until initialization.
	Queued bool

	Err error
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so callers on other goroutines never block while
// an update runs.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain the request.
	q.events[0] = Event{}

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
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Drop discards queued events and returns them.
func (q *eventQueue) Drop() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := q.events
	q.events = make([]Event, 0, 16)
	return dropped
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
