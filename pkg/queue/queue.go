package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/hearthside/relay/pkg/metrics"
	"github.com/hearthside/relay/pkg/types"
)

var (
	// ErrFull is returned when the target priority sub-queue is at capacity
	ErrFull = errors.New("queue full")

	// ErrClosed is returned by Dequeue once the queue is closed and drained,
	// and by Enqueue after Close
	ErrClosed = errors.New("queue closed")
)

// Queue is a five-level bounded FIFO set. Enqueue never blocks; Dequeue
// blocks until an event is available, always draining the highest
// non-empty level first.
type Queue struct {
	mu       sync.Mutex
	levels   [types.NumPriorities][]*types.Event
	capacity int
	closed   bool

	// notify wakes one blocked consumer; a consumer that takes an event
	// while more remain forwards the wakeup so no waiter starves
	notify chan struct{}
}

// New creates a queue with the given per-level capacity
func New(capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Enqueue appends the event to its priority sub-queue. Returns ErrFull
// when that sub-queue is at capacity (drop-newest) and ErrClosed after
// Close. Never blocks.
func (q *Queue) Enqueue(ev *types.Event) error {
	if !ev.Priority.Valid() {
		ev.Priority = types.PriorityNormal
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	lvl := int(ev.Priority)
	if len(q.levels[lvl]) >= q.capacity {
		q.mu.Unlock()
		return ErrFull
	}
	q.levels[lvl] = append(q.levels[lvl], ev)
	metrics.QueueDepth.WithLabelValues(ev.Priority.String()).Set(float64(len(q.levels[lvl])))
	q.mu.Unlock()

	q.wake()
	return nil
}

// Requeue appends a retried event to its sub-queue without the capacity
// check. Events that were admitted once are never dropped on retry.
func (q *Queue) Requeue(ev *types.Event) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	lvl := int(ev.Priority)
	q.levels[lvl] = append(q.levels[lvl], ev)
	metrics.QueueDepth.WithLabelValues(ev.Priority.String()).Set(float64(len(q.levels[lvl])))
	q.mu.Unlock()

	q.wake()
	return nil
}

// DequeueHighest removes and returns the front of the highest non-empty
// sub-queue, blocking until an event arrives, the context is cancelled,
// or the queue is closed and empty.
func (q *Queue) DequeueHighest(ctx context.Context) (*types.Event, error) {
	for {
		q.mu.Lock()
		for lvl := types.NumPriorities - 1; lvl >= 0; lvl-- {
			if len(q.levels[lvl]) == 0 {
				continue
			}
			ev := q.levels[lvl][0]
			q.levels[lvl] = q.levels[lvl][1:]
			remaining := q.remainingLocked()
			metrics.QueueDepth.WithLabelValues(ev.Priority.String()).Set(float64(len(q.levels[lvl])))
			q.mu.Unlock()

			// Forward the wakeup so a second waiter sees the next event
			if remaining > 0 {
				q.wake()
			}
			return ev, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			// Cascade so every blocked consumer observes the close
			q.wake()
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Close stops accepting new events. Blocked consumers drain what remains
// and then receive ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// Wake any blocked consumer so it observes the closed state
	q.wake()
}

// Depth returns the current depth of one priority level
func (q *Queue) Depth(p types.Priority) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.levels[int(p)])
}

// Len returns the total number of queued events across all levels
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remainingLocked()
}

func (q *Queue) remainingLocked() int {
	n := 0
	for lvl := 0; lvl < types.NumPriorities; lvl++ {
		n += len(q.levels[lvl])
	}
	return n
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
