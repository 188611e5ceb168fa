package daemon

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/events"
	"git.home.luguber.info/inful/bedshift/internal/logfields"
)

// consumerBuffer bounds how far a consumer may lag behind the machine.
const consumerBuffer = 64

// EventPublisher forwards adherence events and state snapshots to an external
// consumer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e adherence.Event) error
	PutState(ctx context.Context, ds adherence.DisplayState) error
	Close() error
}

// startConsumers wires the bus subscribers. Each runs on its own goroutine.
func (d *Daemon) startConsumers(ctx context.Context) {
	d.consumers = append(d.consumers, events.Consume(ctx, d.bus, consumerBuffer, "journal",
		func(ctx context.Context, e adherence.Event) {
			if err := d.journal.Append(ctx, e); err != nil {
				slog.Error("Failed to journal adherence event",
					slog.String("event_type", string(e.Type)),
					logfields.CycleID(e.CycleID),
					logfields.Error(err))
			}
		}))

	if d.publisher == nil {
		return
	}

	dirty := make(chan struct{}, 1)
	d.consumers = append(d.consumers, events.Consume(ctx, d.bus, consumerBuffer, "publish",
		func(ctx context.Context, e adherence.Event) {
			if err := d.publisher.PublishEvent(ctx, e); err != nil {
				slog.Warn("Failed to publish adherence event",
					slog.String("event_type", string(e.Type)),
					logfields.CycleID(e.CycleID),
					logfields.Error(err))
			}
			select {
			case dirty <- struct{}{}:
			default:
			}
		}))

	// Snapshots read the machine, so they run off the emit path and coalesce.
	done := make(chan struct{})
	d.consumers = append(d.consumers, done)
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-dirty:
				d.publishState(ctx)
			}
		}
	}()
}

func (d *Daemon) publishState(ctx context.Context) {
	ds, err := d.machine.DisplayState(ctx)
	if err != nil {
		slog.Warn("Failed to read state for publishing", logfields.Error(err))
		return
	}
	if err := d.publisher.PutState(ctx, ds); err != nil {
		slog.Warn("Failed to publish state snapshot", logfields.Error(err))
	}
}
