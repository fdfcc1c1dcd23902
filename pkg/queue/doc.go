/*
Package queue provides the bounded five-level priority queue behind the
event bus.

Each priority level is an independent FIFO; dequeue always serves the
highest non-empty level. Enqueue is non-blocking: when the queue is at
capacity the new event is rejected with ErrFull rather than displacing
queued work. Requeue bypasses the capacity bound and exists for retries
of events that were already admitted once.

Consumers block in DequeueHighest until an event, queue close, or
context cancellation. Wakeups are forwarded between consumers so that
one notification cannot strand a second waiting worker.
*/
package queue
