// Package trigger models the wall-clock trigger facility that delivers the
// pre-notice, sleep-start and grace-deadline callbacks.
package trigger

import (
	"context"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

// Kind identifies which of the three nightly triggers fired.
type Kind string

const (
	KindPreNotice     Kind = "pre_notice"
	KindSleepStart    Kind = "sleep_start"
	KindGraceDeadline Kind = "grace_deadline"
)

// Kinds lists the triple in firing order.
var Kinds = []Kind{KindPreNotice, KindSleepStart, KindGraceDeadline}

// ID returns the logically stable identifier for a kind. Registering the same
// ID again replaces the previous registration.
func (k Kind) ID() string { return "bedshift." + string(k) }

// Mode is the delivery guarantee requested for a registration.
type Mode string

const (
	// ModeExact asks for exact delivery, including during low-power idle states.
	ModeExact Mode = "exact"
	// ModeAlarmClock is the visible-to-user fallback that still guarantees delivery.
	ModeAlarmClock Mode = "alarm_clock"
)

// Registration is a request to deliver a callback at or after At.
type Registration struct {
	ID      string
	Kind    Kind
	CycleID string
	At      time.Time
	Mode    Mode
}

// Delivery is what a Handler receives when a registration fires.
type Delivery struct {
	ID        string
	Kind      Kind
	CycleID   string
	At        time.Time
	Delivered time.Time
}

// Handler consumes trigger deliveries.
type Handler func(ctx context.Context, d Delivery)

// Facility is the wall-clock trigger collaborator.
type Facility interface {
	// CanScheduleExact reports whether the exact-delivery capability is currently granted.
	CanScheduleExact() bool
	// ScheduleAt registers r, replacing any registration with the same ID.
	ScheduleAt(ctx context.Context, r Registration) error
	// Cancel removes the registration with id. Unknown ids are not an error.
	Cancel(ctx context.Context, id string) error
}

var (
	// ErrExactDenied means the exact capability is revoked; callers may fall back.
	ErrExactDenied = errors.SchedulingError("exact alarm capability denied").Build()

	// ErrRegistrationFailed means the facility could not register the trigger at all.
	ErrRegistrationFailed = errors.SchedulingError("trigger registration failed").Build()
)
