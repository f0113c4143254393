package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev BookingEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev BookingEvent) error

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev BookingEvent) error { return f(ctx, ev) }

// Fanout runs every handler for each event. A failing or panicking handler
// does not stop the others; their errors are joined.
type Fanout []Handler

// Handle runs every handler and joins their errors.
func (f Fanout) Handle(ctx context.Context, ev BookingEvent) error {
	var errs []error
	for _, h := range f {
		if err := safeHandle(ctx, h, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeHandle(ctx context.Context, h Handler, ev BookingEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic on %s: %v", ev.Kind, r)
		}
	}()
	return h.Handle(ctx, ev)
}

// Dispatcher hands events to a Handler on background workers so the caller
// never waits on, or sees a failure from, post-commit work.
type Dispatcher struct {
	handler Handler
	log     *zap.Logger
	timeout time.Duration

	events chan BookingEvent
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines draining a buffer of size buffer.
// timeout bounds each handler call.
func NewDispatcher(h Handler, log *zap.Logger, buffer, workers int, timeout time.Duration) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	d := &Dispatcher{
		handler: h,
		log:     log,
		timeout: timeout,
		events:  make(chan BookingEvent, buffer),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Dispatch enqueues ev without blocking. It returns false when the event was
// dropped because the buffer is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(ev BookingEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("event dropped, dispatcher closed", zap.String("event_id", ev.ID), zap.String("kind", string(ev.Kind)))
		return false
	}
	select {
	case d.events <- ev:
		return true
	default:
		d.log.Warn("event dropped, buffer full", zap.String("event_id", ev.ID), zap.String("kind", string(ev.Kind)))
		return false
	}
}

// Close stops accepting events and waits for queued ones to be handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for ev := range d.events {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := safeHandle(ctx, d.handler, ev); err != nil {
			d.log.Error("post-commit handler failed",
				zap.String("event_id", ev.ID),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err),
			)
		}
		cancel()
	}
}
