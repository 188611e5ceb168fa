// Package journal keeps an append-only history of adherence events.
package journal

import (
	"context"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
)

// Entry is one journaled adherence event.
type Entry struct {
	ID int64 `json:"id"`
	adherence.Event
}

// Store persists and queries adherence events.
type Store interface {
	// Append adds an event to the journal.
	Append(ctx context.Context, e adherence.Event) error

	// ByCycle returns every event of one cycle, oldest first.
	ByCycle(ctx context.Context, cycleID string) ([]Entry, error)

	// Range returns the events with start <= At <= end, oldest first.
	Range(ctx context.Context, start, end time.Time) ([]Entry, error)

	// Close releases resources.
	Close() error
}
