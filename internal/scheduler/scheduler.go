// Package scheduler turns a progress bedtime into the nightly trigger triple
// and registers it atomically with the trigger facility.
package scheduler

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/logfields"
	"git.home.luguber.info/inful/bedshift/internal/metrics"
	"git.home.luguber.info/inful/bedshift/internal/timeofday"
	"git.home.luguber.info/inful/bedshift/internal/trigger"
)

// Fixed windows around the sleep-start instant.
const (
	PreNoticeLead = 30 * time.Minute
	GraceWindow   = 5 * time.Minute
)

// ErrSchedulingDenied means neither exact nor alarm-clock registration succeeded.
// Nothing is left registered when it is returned.
var ErrSchedulingDenied = errors.SchedulingError("please grant alarm permission").Build()

// Triple is one night's trigger instants.
type Triple struct {
	PreNotice     time.Time
	SleepStart    time.Time
	GraceDeadline time.Time
}

// ComputeTriple resolves progress to its next occurrence after now and derives
// the pre-notice and grace-deadline instants from it.
func ComputeTriple(progress timeofday.TimeOfDay, now time.Time) Triple {
	sleepStart := timeofday.NextOccurrence(progress, now)
	return Triple{
		PreNotice:     sleepStart.Add(-PreNoticeLead),
		SleepStart:    sleepStart,
		GraceDeadline: sleepStart.Add(GraceWindow),
	}
}

// ComputeTripleAfter is ComputeTriple anchored at after instead of the current
// instant. Passing a cycle's sleep-start yields the same bedtime one day later.
func ComputeTripleAfter(progress timeofday.TimeOfDay, after time.Time) Triple {
	return ComputeTriple(progress, after)
}

// Equal reports whether both triples name the same instants.
func (t Triple) Equal(o Triple) bool {
	return t.PreNotice.Equal(o.PreNotice) && t.SleepStart.Equal(o.SleepStart) && t.GraceDeadline.Equal(o.GraceDeadline)
}

// Registrations expands the triple into facility registrations for cycleID.
func (t Triple) Registrations(cycleID string, mode trigger.Mode) []trigger.Registration {
	at := map[trigger.Kind]time.Time{
		trigger.KindPreNotice:     t.PreNotice,
		trigger.KindSleepStart:    t.SleepStart,
		trigger.KindGraceDeadline: t.GraceDeadline,
	}
	regs := make([]trigger.Registration, 0, len(trigger.Kinds))
	for _, k := range trigger.Kinds {
		regs = append(regs, trigger.Registration{ID: k.ID(), Kind: k, CycleID: cycleID, At: at[k], Mode: mode})
	}
	return regs
}

// EventScheduler registers trigger triples. It holds no plan state.
type EventScheduler struct {
	facility trigger.Facility
	recorder metrics.Recorder
}

// New returns an EventScheduler over facility.
func New(facility trigger.Facility) *EventScheduler {
	return &EventScheduler{facility: facility, recorder: metrics.NoopRecorder{}}
}

// WithRecorder sets the metrics recorder.
func (s *EventScheduler) WithRecorder(r metrics.Recorder) *EventScheduler {
	if r != nil {
		s.recorder = r
	}
	return s
}

// Schedule replaces any registered triple with t for cycleID. It prefers exact
// delivery and falls back to alarm-clock delivery; either all three triggers
// are registered in one mode or none are.
func (s *EventScheduler) Schedule(ctx context.Context, cycleID string, t Triple) (trigger.Mode, error) {
	s.CancelAll(ctx)

	modes := []trigger.Mode{trigger.ModeAlarmClock}
	if s.facility.CanScheduleExact() {
		modes = []trigger.Mode{trigger.ModeExact, trigger.ModeAlarmClock}
	} else {
		s.recorder.IncScheduling(string(trigger.ModeExact), metrics.ResultDenied)
	}

	var lastErr error
	for _, mode := range modes {
		err := s.registerAll(ctx, t.Registrations(cycleID, mode))
		if err == nil {
			s.recorder.IncScheduling(string(mode), metrics.ResultSuccess)
			slog.Info("Scheduled cycle",
				logfields.CycleID(cycleID),
				logfields.DeliveryMode(string(mode)),
				logfields.Instant(t.SleepStart))
			return mode, nil
		}
		lastErr = err
		result := metrics.ResultFailed
		if stderrors.Is(err, trigger.ErrExactDenied) {
			result = metrics.ResultDenied
		}
		s.recorder.IncScheduling(string(mode), result)
		slog.Warn("Trigger registration failed",
			logfields.CycleID(cycleID),
			logfields.DeliveryMode(string(mode)),
			logfields.Error(err))
	}
	return "", ErrSchedulingDenied.WithContext("cycle_id", cycleID).Wrap(lastErr)
}

// CancelAll removes the triple by its stable ids.
func (s *EventScheduler) CancelAll(ctx context.Context) {
	for _, k := range trigger.Kinds {
		if err := s.facility.Cancel(ctx, k.ID()); err != nil {
			slog.Warn("Trigger cancel failed", logfields.TriggerID(k.ID()), logfields.Error(err))
		}
	}
}

// registerAll registers regs in order and rolls back on the first failure.
func (s *EventScheduler) registerAll(ctx context.Context, regs []trigger.Registration) error {
	for i, r := range regs {
		if err := s.facility.ScheduleAt(ctx, r); err != nil {
			for _, done := range regs[:i] {
				if cerr := s.facility.Cancel(ctx, done.ID); cerr != nil {
					slog.Warn("Rollback cancel failed", logfields.TriggerID(done.ID), logfields.Error(cerr))
				}
			}
			return err
		}
	}
	return nil
}
