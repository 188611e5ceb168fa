package trigger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/bedshift/internal/logfields"
)

type registered struct {
	jobID uuid.UUID
	reg   Registration
}

// GocronFacility implements Facility with one-time gocron jobs.
type GocronFacility struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock

	mu      sync.Mutex
	entries map[string]registered

	exactAllowed atomic.Bool
	handler      atomic.Pointer[Handler]
	surface      func(Registration)
}

// NewGocronFacility wraps an existing gocron scheduler. clock must be the same
// clock the scheduler was built with.
func NewGocronFacility(s gocron.Scheduler, clock clockwork.Clock, exactAllowed bool) *GocronFacility {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	f := &GocronFacility{
		scheduler: s,
		clock:     clock,
		entries:   make(map[string]registered),
	}
	f.exactAllowed.Store(exactAllowed)
	return f
}

// SetHandler injects the delivery callback.
func (f *GocronFacility) SetHandler(h Handler) { f.handler.Store(&h) }

// SetSurface injects the hook called for every alarm-clock registration so the
// fallback is made visible to the user.
func (f *GocronFacility) SetSurface(fn func(Registration)) { f.surface = fn }

// SetExactAllowed grants or revokes the exact capability.
func (f *GocronFacility) SetExactAllowed(allowed bool) {
	f.exactAllowed.Store(allowed)
	slog.Info("Exact alarm capability changed", slog.Bool("allowed", allowed))
}

// CanScheduleExact implements Facility.
func (f *GocronFacility) CanScheduleExact() bool { return f.exactAllowed.Load() }

// ScheduleAt implements Facility. Instants that are not in the future fire immediately.
func (f *GocronFacility) ScheduleAt(_ context.Context, r Registration) error {
	if r.ID == "" {
		r.ID = r.Kind.ID()
	}
	if r.Mode == ModeExact && !f.CanScheduleExact() {
		return ErrExactDenied.WithContext("trigger_id", r.ID)
	}

	start := gocron.OneTimeJobStartDateTime(r.At)
	if !r.At.After(f.clock.Now()) {
		start = gocron.OneTimeJobStartImmediately()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.removeLocked(r.ID)

	job, err := f.newJob(r, start)
	if err != nil && !r.At.After(f.clock.Now()) {
		// The instant slipped into the past between the check and the registration.
		job, err = f.newJob(r, gocron.OneTimeJobStartImmediately())
	}
	if err != nil {
		return ErrRegistrationFailed.WithContext("trigger_id", r.ID).Wrap(err)
	}
	if job == nil {
		return ErrRegistrationFailed.WithContext("trigger_id", r.ID).WithContext("reason", "scheduler stopped")
	}
	f.entries[r.ID] = registered{jobID: job.ID(), reg: r}

	slog.Debug("Registered trigger",
		logfields.TriggerID(r.ID),
		logfields.CycleID(r.CycleID),
		logfields.DeliveryMode(string(r.Mode)),
		logfields.Instant(r.At))

	if r.Mode == ModeAlarmClock && f.surface != nil {
		f.surface(r)
	}
	return nil
}

// Cancel implements Facility.
func (f *GocronFacility) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(id)
	return nil
}

// Registrations returns the currently registered triggers ordered by instant.
func (f *GocronFacility) Registrations() []Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Registration, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func (f *GocronFacility) newJob(r Registration, start gocron.OneTimeJobStartAtOption) (gocron.Job, error) {
	return f.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(f.deliver, r),
		gocron.WithName(r.ID),
		gocron.WithTags(string(r.Kind), string(r.Mode), r.CycleID),
	)
}

func (f *GocronFacility) removeLocked(id string) {
	e, ok := f.entries[id]
	if !ok {
		return
	}
	delete(f.entries, id)
	// Already-fired one-time jobs may be gone; that is fine.
	if err := f.scheduler.RemoveJob(e.jobID); err != nil {
		slog.Debug("Trigger job already removed", logfields.TriggerID(id), logfields.Error(err))
	}
}

// deliver is called by gocron when a registration fires.
func (f *GocronFacility) deliver(r Registration) {
	f.mu.Lock()
	e, ok := f.entries[r.ID]
	current := ok && e.reg == r
	if current {
		delete(f.entries, r.ID)
	}
	f.mu.Unlock()

	if !current {
		slog.Debug("Dropping superseded trigger", logfields.TriggerID(r.ID), logfields.CycleID(r.CycleID))
		return
	}

	h := f.handler.Load()
	if h == nil || *h == nil {
		slog.Error("Trigger handler not set", logfields.TriggerID(r.ID))
		return
	}
	(*h)(context.Background(), Delivery{
		ID:        r.ID,
		Kind:      r.Kind,
		CycleID:   r.CycleID,
		At:        r.At,
		Delivered: f.clock.Now(),
	})
}
