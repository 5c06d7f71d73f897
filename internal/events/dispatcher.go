package events

import (
	"context"
	"errors"
	"log/slog"
)

// ErrQueueFull is returned by Dispatcher.Publish when the buffer is full.
var ErrQueueFull = errors.New("event queue full")

// Dispatcher decouples request handling from the broker: Publish enqueues
// and Run forwards queued events to the next publisher in order.
type Dispatcher struct {
	next   Publisher
	inbox  chan Event
	logger *slog.Logger
}

func NewDispatcher(next Publisher, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{next: next, inbox: make(chan Event, buffer), logger: logger}
}

// Publish enqueues e without blocking.
func (d *Dispatcher) Publish(_ context.Context, e Event) error {
	select {
	case d.inbox <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run forwards events until ctx is done, then drains what is already queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return nil
		case e := <-d.inbox:
			d.forward(ctx, e)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case e := <-d.inbox:
			d.forward(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) forward(ctx context.Context, e Event) {
	if err := d.next.Publish(ctx, e); err != nil {
		d.logger.WarnContext(ctx, "failed to forward event",
			"event_type", string(e.Type),
			"subject", e.Subject,
			"error", err,
		)
	}
}
