package syncer

import (
	"sync"
)

// deliveryQueue is a thread-safe FIFO queue of pending deliveries.
//
// Unlike a plain dequeue, the head is only removed once its send succeeded
// (Peek then Pop), so a failed delivery blocks everything behind it.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type deliveryQueue struct {
	mu      sync.Mutex
	pending []Delivery
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

func newDeliveryQueue() *deliveryQueue {
	return &deliveryQueue{
		pending: make([]Delivery, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a delivery to the back of the queue.
// Returns false if the queue is closed.
func (q *deliveryQueue) Enqueue(d Delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.pending = append(q.pending, d)

	// Non-blocking: a buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Peek returns the head without removing it.
func (q *deliveryQueue) Peek() (Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Delivery{}, false
	}
	return q.pending[0], true
}

// Pop removes the head. It is a no-op on an empty queue.
func (q *deliveryQueue) Pop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return
	}
	// Clear the slot so the change-set maps can be collected
	q.pending[0] = Delivery{}
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}
}

// Wait returns a channel that signals when deliveries may be available.
// It is closed when the queue is closed.
func (q *deliveryQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *deliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops further enqueues and wakes any waiter. Deliveries already
// queued stay queued.
func (q *deliveryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
