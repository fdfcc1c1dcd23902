package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/metrics"
	"github.com/hearthside/relay/pkg/queue"
	"github.com/hearthside/relay/pkg/types"
)

// ErrShuttingDown is returned for publishes after Shutdown has begun
var ErrShuttingDown = errors.New("bus shutting down")

// ArchiveSink receives each event that reaches a terminal status. A nil
// sink is valid; terminal events are then simply not persisted.
type ArchiveSink interface {
	WriteEvent(ev *types.Event) error
}

// Options configures the bus
type Options struct {
	QueueSize   int
	Workers     int
	MaxAttempts int
	RetryDelay  time.Duration
	Archive     ArchiveSink
}

// PublishResult is the synchronous outcome of a publish
type PublishResult struct {
	ID       string    `json:"id"`
	QueuedAt time.Time `json:"queued_at"`
	Accepted bool      `json:"accepted"`
	Reason   string    `json:"reason,omitempty"`
}

// Bus owns the priority queue and the dispatch loop. Producers publish
// events; worker goroutines pull them in strict priority order and fan
// out to registered handlers with per-event retry.
type Bus struct {
	queue    *queue.Queue
	registry *Registry
	opts     Options
	logger   zerolog.Logger

	accepting atomic.Bool
	cancel    context.CancelFunc
	group     *errgroup.Group

	retryMu     sync.Mutex
	retryTimers map[string]*retryEntry
}

type retryEntry struct {
	timer *time.Timer
	ev    *types.Event
}

// New creates a bus. Handlers should be registered before Start so that
// scheduling begins only once the subscriber set is complete.
func New(opts Options) *Bus {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	b := &Bus{
		queue:       queue.New(opts.QueueSize),
		registry:    NewRegistry(),
		opts:        opts,
		logger:      log.WithComponent("dispatcher"),
		retryTimers: make(map[string]*retryEntry),
	}
	// Publishes are accepted from construction; dispatch begins at Start
	b.accepting.Store(true)
	return b
}

// Registry returns the handler registry
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Queue exposes queue depths for gauges and tests
func (b *Bus) Queue() *queue.Queue {
	return b.queue
}

// Start launches the dispatcher workers
func (b *Bus) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < b.opts.Workers; i++ {
		b.group.Go(func() error {
			return b.worker(ctx)
		})
	}

	metrics.RegisterComponent("queue", true, "")
	metrics.RegisterComponent("dispatcher", true, fmt.Sprintf("%d workers", b.opts.Workers))
	b.logger.Info().Int("workers", b.opts.Workers).Msg("dispatcher started")
}

// Publish validates the event, assigns identity if absent, and enqueues
// it. The result reports acceptance synchronously; a full sub-queue
// yields a drop, never a block.
func (b *Bus) Publish(ev *types.Event) PublishResult {
	if !b.accepting.Load() {
		return PublishResult{ID: ev.ID, Accepted: false, Reason: "rejected"}
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.Status = types.StatusQueued

	err := b.queue.Enqueue(ev)
	switch {
	case errors.Is(err, queue.ErrFull):
		metrics.IncEventsDropped()
		b.logger.Warn().
			Str("event_id", ev.ID).
			Str("priority", ev.Priority.String()).
			Msg("event dropped: queue full")
		return PublishResult{ID: ev.ID, Accepted: false, Reason: "queue-full"}
	case errors.Is(err, queue.ErrClosed):
		return PublishResult{ID: ev.ID, Accepted: false, Reason: "rejected"}
	}

	metrics.IncEventsEnqueued()
	return PublishResult{ID: ev.ID, QueuedAt: time.Now().UTC(), Accepted: true}
}

// PublishBatch publishes events in order and returns per-event results
func (b *Bus) PublishBatch(events []*types.Event) []PublishResult {
	results := make([]PublishResult, len(events))
	for i, ev := range events {
		results[i] = b.Publish(ev)
	}
	return results
}

// worker pulls events until the queue closes or the context is cancelled
func (b *Bus) worker(ctx context.Context) error {
	for {
		ev, err := b.queue.DequeueHighest(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return nil // context cancelled
		}
		b.dispatch(ctx, ev)
	}
}

// dispatch runs all handlers for the event, isolating failures, and
// applies the retry policy
func (b *Bus) dispatch(ctx context.Context, ev *types.Event) {
	ev.Status = types.StatusProcessing

	regs := b.registry.HandlersFor(ev.Category)
	if ev.PersonalLogOnly {
		filtered := regs[:0:0]
		for _, reg := range regs {
			if reg.Name == PersonalLogHandler {
				filtered = append(filtered, reg)
			}
		}
		regs = filtered
	}

	var failures []error
	for _, reg := range regs {
		if ctx.Err() != nil {
			// Cancelled mid-dispatch: terminal failure, no re-enqueue
			b.terminate(ev, types.StatusFailed)
			return
		}
		if err := b.runHandler(ctx, reg, ev); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", reg.Name, err))
			b.logger.Error().
				Err(err).
				Str("event_id", ev.ID).
				Str("handler", reg.Name).
				Msg("handler failed")
		}
	}

	if len(failures) == 0 {
		b.terminate(ev, types.StatusCompleted)
		return
	}

	ev.RetryCount++
	if ev.RetryCount >= b.opts.MaxAttempts {
		b.terminate(ev, types.StatusFailed)
		return
	}
	b.scheduleRetry(ev)
}

// runHandler invokes one handler, converting panics into errors so a
// misbehaving subscriber cannot take down a worker
func (b *Bus) runHandler(ctx context.Context, reg Registration, ev *types.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return reg.Fn(ctx, ev)
}

// scheduleRetry re-enqueues the event after a linear backoff. Retries
// bypass the capacity bound: an event admitted once is never dropped.
func (b *Bus) scheduleRetry(ev *types.Event) {
	ev.Status = types.StatusRetrying
	delay := b.opts.RetryDelay * time.Duration(ev.RetryCount)

	b.retryMu.Lock()
	entry := &retryEntry{ev: ev}
	entry.timer = time.AfterFunc(delay, func() {
		b.retryMu.Lock()
		delete(b.retryTimers, ev.ID)
		b.retryMu.Unlock()

		if err := b.queue.Requeue(ev); err != nil {
			b.terminate(ev, types.StatusFailed)
			return
		}
		metrics.IncEventsRetried()
	})
	b.retryTimers[ev.ID] = entry
	b.retryMu.Unlock()

	logger := log.WithEventID(ev.ID)
	logger.Info().
		Int("retry_count", ev.RetryCount).
		Dur("delay", delay).
		Msg("event scheduled for retry")
}

// terminate marks the event's final status and hands it to the archive
func (b *Bus) terminate(ev *types.Event, status types.ProcessingStatus) {
	ev.Status = status
	switch status {
	case types.StatusCompleted:
		metrics.IncEventsCompleted()
	case types.StatusFailed:
		metrics.IncEventsFailed()
	}

	if b.opts.Archive != nil {
		if err := b.opts.Archive.WriteEvent(ev); err != nil {
			b.logger.Error().Err(err).Str("event_id", ev.ID).Msg("archive write failed")
		}
	}
}

// cancelRetries stops every pending retry timer and marks its event
// failed. A timer whose callback already fired is left to the callback.
func (b *Bus) cancelRetries() {
	b.retryMu.Lock()
	for id, entry := range b.retryTimers {
		if entry.timer.Stop() {
			b.terminate(entry.ev, types.StatusFailed)
		}
		delete(b.retryTimers, id)
	}
	b.retryMu.Unlock()
}

// Shutdown stops accepting publishes, drains the queue, and waits for
// in-flight handlers up to the deadline. Past the deadline, in-flight
// work is cancelled and affected events are marked failed. Pending
// retries are cancelled and marked failed.
func (b *Bus) Shutdown(deadline time.Duration) error {
	b.accepting.Store(false)

	// Cancel pending retries; they were dispatched before shutdown and
	// must reach a terminal status
	b.cancelRetries()

	b.queue.Close()

	done := make(chan error, 1)
	go func() {
		done <- b.group.Wait()
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(deadline):
		b.cancel()
		err = <-done
	}

	// Workers draining during shutdown can still fail events and arm new
	// retry timers; sweep again now that dispatch has stopped
	b.cancelRetries()

	metrics.UpdateComponent("dispatcher", false, "stopped")
	metrics.UpdateComponent("queue", false, "closed")
	b.logger.Info().Msg("dispatcher stopped")
	return err
}
