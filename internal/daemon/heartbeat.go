package daemon

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/bedshift/internal/logfields"
)

// heartbeat retries a registration that failed earlier, paced by the retry
// policy. It never replaces a healthy cycle.
func (d *Daemon) heartbeat(ctx context.Context) {
	tracker := d.retry.Load()
	now := d.clock.Now()
	if !tracker.Ready(now) {
		return
	}

	attempted, err := d.retrier.RetryPending(ctx)
	if !attempted {
		if err != nil {
			slog.Warn("Pending registration check failed", logfields.Error(err))
			return
		}
		tracker.Reset()
		return
	}
	if err != nil {
		next := tracker.Failed(now)
		attrs := []any{logfields.Attempt(tracker.Failures()), logfields.Error(err)}
		if tracker.Exhausted() {
			slog.Warn("Giving up registration retries until the next foreground event", attrs...)
			return
		}
		slog.Info("Registration retry failed", append(attrs, slog.Time("next_attempt", next))...)
		return
	}

	slog.Info("Pending registration succeeded", logfields.Attempt(tracker.Failures()+1))
	tracker.Reset()
}
