// Package triggertest provides an in-memory trigger.Facility for tests.
package triggertest

import (
	"context"
	"sort"
	"sync"

	"git.home.luguber.info/inful/bedshift/internal/trigger"
)

// Calls tracks method invocations for test verification.
type Calls struct {
	ScheduleAt int
	Cancel     int
}

// Recorder records registrations without running any timer. Tests fire
// triggers explicitly through Delivery.
type Recorder struct {
	mu      sync.Mutex
	regs    map[string]trigger.Registration
	calls   Calls
	exact   bool
	history []trigger.Registration

	// FailAlarmClock makes every alarm-clock registration fail.
	FailAlarmClock bool
	// FailOnKind makes registrations of that kind fail in every mode.
	FailOnKind trigger.Kind
}

// NewRecorder returns a Recorder with the exact capability granted.
func NewRecorder() *Recorder {
	return &Recorder{regs: make(map[string]trigger.Registration), exact: true}
}

// SetExactAllowed grants or revokes the exact capability.
func (r *Recorder) SetExactAllowed(allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact = allowed
}

// CanScheduleExact implements trigger.Facility.
func (r *Recorder) CanScheduleExact() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exact
}

// ScheduleAt implements trigger.Facility.
func (r *Recorder) ScheduleAt(_ context.Context, reg trigger.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.ScheduleAt++
	if reg.ID == "" {
		reg.ID = reg.Kind.ID()
	}
	if reg.Mode == trigger.ModeExact && !r.exact {
		return trigger.ErrExactDenied
	}
	if reg.Kind == r.FailOnKind || (reg.Mode == trigger.ModeAlarmClock && r.FailAlarmClock) {
		return trigger.ErrRegistrationFailed.WithContext("trigger_id", reg.ID)
	}
	r.regs[reg.ID] = reg
	r.history = append(r.history, reg)
	return nil
}

// Cancel implements trigger.Facility.
func (r *Recorder) Cancel(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Cancel++
	delete(r.regs, id)
	return nil
}

// Registrations returns the live registrations ordered by instant.
func (r *Recorder) Registrations() []trigger.Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]trigger.Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Get returns the live registration for kind.
func (r *Recorder) Get(kind trigger.Kind) (trigger.Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[kind.ID()]
	return reg, ok
}

// History returns every successful registration in order.
func (r *Recorder) History() []trigger.Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trigger.Registration(nil), r.history...)
}

// Calls returns a snapshot of the call counters.
func (r *Recorder) Calls() Calls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Delivery builds the delivery a live registration of kind would produce.
// ok is false when nothing of that kind is registered.
func (r *Recorder) Delivery(kind trigger.Kind) (trigger.Delivery, bool) {
	reg, ok := r.Get(kind)
	if !ok {
		return trigger.Delivery{}, false
	}
	r.mu.Lock()
	delete(r.regs, reg.ID)
	r.mu.Unlock()
	return trigger.Delivery{ID: reg.ID, Kind: reg.Kind, CycleID: reg.CycleID, At: reg.At, Delivered: reg.At}, true
}
