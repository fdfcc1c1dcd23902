/*
Package bus provides the event dispatch core of the relay fabric.

The bus package owns the priority queue and the worker pool. Producers
publish events and get a synchronous accept/reject result; worker
goroutines pull events in strict priority order and fan each one out to
the handlers registered for its category, with per-event retry and
panic isolation.

# Architecture

	┌──────────────────── EVENT BUS ───────────────────────────┐
	│                                                           │
	│  Publish / PublishBatch                                   │
	│       │  assign id + timestamp, accept/reject             │
	│       ▼                                                   │
	│  ┌─────────────────────────────────────────┐              │
	│  │  Priority Queue (5 levels)              │              │
	│  │  emergency > critical > high >          │              │
	│  │  normal > low, FIFO within a level      │              │
	│  └──────────────────┬──────────────────────┘              │
	│                     │ DequeueHighest                      │
	│  ┌──────────────────▼──────────────────────┐              │
	│  │  Worker Pool (errgroup)                 │              │
	│  │  - fan out to category handlers         │              │
	│  │  - panic recovery per handler           │              │
	│  │  - personal-log-only filtering          │              │
	│  └──────────────────┬──────────────────────┘              │
	│                     │                                     │
	│        success ─────┼───── failure                        │
	│            │        │        │                            │
	│      completed      │   retry (linear backoff)            │
	│            │        │        │ attempts exhausted         │
	│            ▼        │        ▼                            │
	│       ┌─────────────▼──────────────┐                      │
	│       │  ArchiveSink (terminal)    │                      │
	│       └────────────────────────────┘                      │
	└───────────────────────────────────────────────────────────┘

# Dispatch Semantics

Handlers for an event run sequentially in registration order. A handler
error or panic never prevents the remaining handlers from running; any
failure marks the whole pass failed and schedules a retry of the full
handler set. After three total attempts the event is terminally failed.

Events flagged personal-log-only run exactly one handler, the one
registered under PersonalLogHandler, and are invisible to every other
subscriber.

Retries bypass the queue capacity bound: an event admitted once is
never dropped by a later requeue.

# Usage

	b := bus.New(bus.Options{
		QueueSize:   10000,
		Workers:     4,
		MaxAttempts: 3,
		RetryDelay:  time.Minute,
	})
	b.Registry().Register(types.CategorySystem, "audit", auditHandler)
	b.Start(ctx)
	defer b.Shutdown(30 * time.Second)

	res := b.Publish(types.NewEvent(
		types.CategorySystem, "backup", types.PriorityHigh, "backup complete"))
	if !res.Accepted {
		// queue full or shutting down
	}

# Shutdown

Shutdown stops accepting publishes, cancels pending retry timers (the
affected events are terminally failed), closes the queue so workers
drain what remains, and waits up to the deadline before cancelling
in-flight handlers.
*/
package bus
