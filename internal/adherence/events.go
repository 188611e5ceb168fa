package adherence

import (
	"context"
	"time"
)

// EventType names an adherence event.
type EventType string

const (
	EventCycleScheduled   EventType = "cycle_scheduled"
	EventSleepConfirmed   EventType = "sleep_confirmed"
	EventNightSkipped     EventType = "night_skipped"
	EventGraceExpired     EventType = "grace_expired"
	EventSchedulingDenied EventType = "scheduling_denied"
)

// EventTypes lists every adherence event type.
var EventTypes = []EventType{
	EventCycleScheduled,
	EventSleepConfirmed,
	EventNightSkipped,
	EventGraceExpired,
	EventSchedulingDenied,
}

// Event is emitted after every committed transition.
type Event struct {
	Type            EventType  `json:"type"`
	CycleID         string     `json:"cycle_id"`
	At              time.Time  `json:"at"`
	ProgressBedtime string     `json:"progress_bedtime"`
	TargetBedtime   string     `json:"target_bedtime"`
	Streak          int        `json:"streak"`
	StepMinutes     int        `json:"step_minutes"`
	DeliveryMode    string     `json:"delivery_mode,omitempty"`
	SleepStartAt    *time.Time `json:"sleep_start_at,omitempty"`
}

// EventSink receives adherence events. Emit must not block the caller for long.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, e Event)

// Emit implements EventSink.
func (f SinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

type noopSink struct{}

func (noopSink) Emit(context.Context, Event) {}
