// Package worker runs event delivery off the request path.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketflow/internal/events"
)

// ErrQueueFull is returned by Publish when the event was dropped.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by Publish after Stop.
var ErrStopped = errors.New("dispatcher stopped")

// Options configures an AsyncDispatcher.
type Options struct {
	Workers   int
	QueueSize int
	// HandlerTimeout bounds each delivery. Zero means no deadline.
	HandlerTimeout time.Duration
	// OnDrop is called for every event that could not be queued.
	OnDrop func(events.Event)
}

// AsyncDispatcher queues events and hands them to an inner dispatcher from a
// fixed pool of goroutines. Publish never blocks the caller.
type AsyncDispatcher struct {
	inner  events.Dispatcher
	logger *zap.Logger
	opts   Options

	queue   chan events.Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewAsyncDispatcher starts the workers.
func NewAsyncDispatcher(inner events.Dispatcher, logger *zap.Logger, opts Options) *AsyncDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	d := &AsyncDispatcher{
		inner:  inner,
		logger: logger,
		opts:   opts,
		queue:  make(chan events.Event, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
	return d
}

// Publish enqueues the event. The request context is not carried into
// delivery, which outlives the request.
func (d *AsyncDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- event:
		return nil
	default:
		d.logger.Warn("dropping event, queue full",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
		if d.opts.OnDrop != nil {
			d.opts.OnDrop(event)
		}
		return ErrQueueFull
	}
}

// Subscribe registers handler on the inner dispatcher.
func (d *AsyncDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.inner.Subscribe(eventType, handler)
}

// Stop refuses new events and waits for queued ones to be delivered or for
// ctx to expire, whichever comes first.
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) run(id int) {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(id, event)
	}
}

func (d *AsyncDispatcher) deliver(id int, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event delivery panicked",
				zap.Int("worker", id),
				zap.String("event_id", event.ID),
				zap.Any("panic", r))
		}
	}()

	ctx := context.Background()
	if d.opts.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.HandlerTimeout)
		defer cancel()
	}
	if err := d.inner.Publish(ctx, event); err != nil {
		d.logger.Warn("event delivery failed",
			zap.Int("worker", id),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

var _ events.Dispatcher = (*AsyncDispatcher)(nil)
