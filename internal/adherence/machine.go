package adherence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/bedshift/internal/logfields"
	"git.home.luguber.info/inful/bedshift/internal/metrics"
	"git.home.luguber.info/inful/bedshift/internal/notify"
	"git.home.luguber.info/inful/bedshift/internal/scheduler"
	"git.home.luguber.info/inful/bedshift/internal/shift"
	"git.home.luguber.info/inful/bedshift/internal/state"
	"git.home.luguber.info/inful/bedshift/internal/timeofday"
	"git.home.luguber.info/inful/bedshift/internal/trigger"
)

// Survey is the input of the setup flow.
type Survey struct {
	CurrentBedtime  string `json:"current_bedtime"`
	TargetWakeTime  string `json:"target_wake_time"`
	DurationMinutes int    `json:"sleep_duration_minutes,omitempty"`
}

// Machine is the adherence state machine. All exported methods are safe for
// concurrent use; they serialize on a single lock.
type Machine struct {
	mu       sync.Mutex
	store    state.Store
	sched    *scheduler.EventScheduler
	clock    clockwork.Clock
	notifier notify.Notifier
	sink     EventSink
	recorder metrics.Recorder
	newID    func() string

	// preNoticed is the cycle whose pre-notice was already surfaced.
	preNoticed string
}

// Option configures a Machine.
type Option func(*Machine)

// WithNotifier sets the notice channel.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Machine) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithEventSink sets the adherence event sink.
func WithEventSink(s EventSink) Option {
	return func(m *Machine) {
		if s != nil {
			m.sink = s
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Machine) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithIDGenerator overrides cycle id generation.
func WithIDGenerator(fn func() string) Option {
	return func(m *Machine) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// New returns a Machine persisting to store and registering through sched.
func New(store state.Store, sched *scheduler.EventScheduler, clock clockwork.Clock, opts ...Option) *Machine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Machine{
		store:    store,
		sched:    sched,
		clock:    clock,
		notifier: notify.NoopNotifier{},
		sink:     noopSink{},
		recorder: metrics.NoopRecorder{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// txn is the working set of one transition. Effects are released only after
// the state is persisted.
type txn struct {
	st      *state.ScheduleState
	now     time.Time
	dirty   bool
	touched bool
	events  []Event
	notices []notify.Notice
	after   []func()
}

func (tx *txn) event(typ EventType, cycleID string) *Event {
	tx.events = append(tx.events, Event{
		Type:            typ,
		CycleID:         cycleID,
		At:              tx.now,
		ProgressBedtime: tx.st.ProgressBedtime.String(),
		TargetBedtime:   tx.st.TargetBedtime.String(),
		Streak:          tx.st.ConsecutiveSuccessDays,
		StepMinutes:     tx.st.StepMinutes,
	})
	return &tx.events[len(tx.events)-1]
}

func (tx *txn) notice(kind notify.Kind, cycleID string, at time.Time) {
	tx.notices = append(tx.notices, notify.Notice{
		Kind:    kind,
		CycleID: cycleID,
		At:      at,
		Bedtime: tx.st.ProgressBedtime,
	})
}

// run executes fn as one transaction under the machine lock.
func (m *Machine) run(ctx context.Context, op string, fn func(tx *txn) error) (*state.ScheduleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.clock.Now()
	defer func() { m.recorder.ObserveTransitionDuration(op, m.clock.Since(start)) }()

	st, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	tx := &txn{st: st, now: start}
	opErr := fn(tx)
	if tx.dirty {
		tx.st.UpdatedAt = tx.now
		if err := m.store.Save(ctx, tx.st); err != nil {
			slog.Error("Failed to persist schedule state", slog.String("op", op), logfields.Error(err))
			if tx.touched {
				m.restoreRegistrations(ctx)
			}
			return nil, err
		}
		m.recorder.SetStreak(tx.st.ConsecutiveSuccessDays)
		m.recorder.SetStepMinutes(tx.st.StepMinutes)
		m.recorder.SetRemainingMinutes(shift.Remaining(tx.st.ProgressBedtime, tx.st.TargetBedtime))
	}
	for _, n := range tx.notices {
		m.notifier.Notify(ctx, n)
	}
	for _, e := range tx.events {
		m.sink.Emit(ctx, e)
	}
	for _, fn := range tx.after {
		fn()
	}
	return tx.st, opErr
}

// restoreRegistrations brings the live registrations back in line with the
// persisted state after a transaction that re-registered could not be saved.
func (m *Machine) restoreRegistrations(ctx context.Context) {
	st, err := m.store.Load(ctx)
	if err != nil {
		slog.Error("Failed to reload schedule state; cancelling registrations", logfields.Error(err))
		st = state.Default()
	}
	c := st.Cycle
	if c == nil || st.Phase == state.PhaseIdle {
		m.sched.CancelAll(ctx)
		return
	}
	triple := scheduler.Triple{PreNotice: c.PreNoticeAt, SleepStart: c.SleepStartAt, GraceDeadline: c.GraceDeadlineAt}
	if _, err := m.sched.Schedule(ctx, c.ID, triple); err != nil {
		slog.Error("Failed to restore persisted cycle registrations", logfields.CycleID(c.ID), logfields.Error(err))
	}
}

// schedule registers t. A fresh schedule starts a new cycle; otherwise the
// current cycle is re-registered in place. On failure the cycle is dropped and
// marked pending so the next resume retries it.
func (m *Machine) schedule(ctx context.Context, tx *txn, t scheduler.Triple, fresh bool) error {
	id := tx.st.CycleID()
	if fresh || id == "" {
		fresh = true
		id = m.newID()
	}
	tx.dirty = true
	tx.touched = true

	mode, err := m.sched.Schedule(ctx, id, t)
	if err != nil {
		tx.st.ClearCycle(true)
		tx.notice(notify.KindPermissionRequired, id, t.SleepStart)
		at := t.SleepStart
		tx.event(EventSchedulingDenied, id).SleepStartAt = &at
		slog.Warn("Cycle scheduling denied; retry on next resume",
			logfields.CycleID(id), logfields.Progress(tx.st.ProgressBedtime.String()), logfields.Error(err))
		return err
	}

	if !fresh {
		tx.st.Cycle.Mode = mode
		return nil
	}

	tx.st.BeginCycle(state.Cycle{
		ID:              id,
		PreNoticeAt:     t.PreNotice,
		SleepStartAt:    t.SleepStart,
		GraceDeadlineAt: t.GraceDeadline,
		Mode:            mode,
	})
	if mode == trigger.ModeAlarmClock {
		tx.notice(notify.KindAlarmClockFallback, id, t.SleepStart)
	}
	e := tx.event(EventCycleScheduled, id)
	e.DeliveryMode = string(mode)
	at := t.SleepStart
	e.SleepStartAt = &at
	return nil
}

// Setup creates or replaces the bedtime plan and schedules the first cycle.
// Malformed input is rejected before any state is touched.
func (m *Machine) Setup(ctx context.Context, s Survey) (DisplayState, error) {
	current, err := timeofday.Parse(s.CurrentBedtime)
	if err != nil {
		return DisplayState{}, err
	}
	wake, err := timeofday.Parse(s.TargetWakeTime)
	if err != nil {
		return DisplayState{}, err
	}
	duration := s.DurationMinutes
	if duration == 0 {
		duration = state.DefaultSleepDurationMinutes
	}
	if duration < 0 || duration >= timeofday.MinutesPerDay {
		return DisplayState{}, ErrInvalidDuration.WithContext("minutes", duration)
	}

	st, err := m.run(ctx, "setup", func(tx *txn) error {
		st := tx.st
		st.Configured = true
		st.CurrentBedtime = current
		st.TargetWakeTime = wake
		st.TargetSleepDurationMinutes = duration
		st.TargetBedtime = shift.TargetBedtime(wake, duration)
		st.ProgressBedtime = shift.InitialProgress(current, st.TargetBedtime)
		st.ConsecutiveSuccessDays = state.DefaultConsecutiveSuccess
		st.StepMinutes = state.DefaultStepMinutes
		st.LastOutcome = state.OutcomeNone
		st.LastResolvedCycleID = ""
		st.ClearCycle(false)
		m.preNoticed = ""

		slog.Info("Bedtime plan created",
			logfields.Progress(st.ProgressBedtime.String()),
			logfields.Target(st.TargetBedtime.String()))
		return m.schedule(ctx, tx, scheduler.ComputeTriple(st.ProgressBedtime, tx.now), true)
	})
	return project(st), err
}

// Reschedule registers a new cycle from the persisted progress bedtime. An
// open awaiting cycle is left alone.
func (m *Machine) Reschedule(ctx context.Context) (DisplayState, error) {
	st, err := m.run(ctx, "reschedule", func(tx *txn) error {
		if !tx.st.Configured {
			return ErrNotConfigured
		}
		if tx.st.Phase == state.PhaseAwaiting {
			slog.Info("Reschedule ignored while awaiting confirmation", logfields.CycleID(tx.st.CycleID()))
			return nil
		}
		return m.schedule(ctx, tx, scheduler.ComputeTriple(tx.st.ProgressBedtime, tx.now), true)
	})
	return project(st), err
}

// Resume handles a boot or foreground event. Registered triggers are assumed
// lost: the triple is recomputed from the persisted progress and registered
// again. The cycle id survives when the recomputed sleep-start matches, and an
// awaiting cycle whose grace window is still open is kept as is. A cycle whose
// window passed while the process was down is replaced without penalty.
func (m *Machine) Resume(ctx context.Context) (DisplayState, error) {
	st, err := m.run(ctx, "resume", func(tx *txn) error {
		st := tx.st
		if !st.Configured {
			return nil
		}
		switch st.Phase {
		case state.PhaseAwaiting:
			c := st.Cycle
			if tx.now.Before(c.GraceDeadlineAt) {
				return m.schedule(ctx, tx, scheduler.Triple{
					PreNotice:     c.PreNoticeAt,
					SleepStart:    c.SleepStartAt,
					GraceDeadline: c.GraceDeadlineAt,
				}, false)
			}
			slog.Info("Cycle lapsed while offline; starting a new one", logfields.CycleID(c.ID))
		case state.PhaseScheduled:
			t := scheduler.ComputeTriple(st.ProgressBedtime, tx.now)
			if t.SleepStart.Equal(st.Cycle.SleepStartAt) {
				return m.schedule(ctx, tx, t, false)
			}
			slog.Info("Cycle lapsed while offline; starting a new one", logfields.CycleID(st.Cycle.ID))
			return m.schedule(ctx, tx, t, true)
		}
		return m.schedule(ctx, tx, scheduler.ComputeTriple(st.ProgressBedtime, tx.now), true)
	})
	return project(st), err
}

// RetryPending reschedules only when the last registration failed. It reports
// whether an attempt was made.
func (m *Machine) RetryPending(ctx context.Context) (bool, error) {
	attempted := false
	_, err := m.run(ctx, "retry", func(tx *txn) error {
		if !tx.st.Configured || !tx.st.ReschedulePending {
			return nil
		}
		attempted = true
		return m.schedule(ctx, tx, scheduler.ComputeTriple(tx.st.ProgressBedtime, tx.now), true)
	})
	return attempted, err
}

// Handler adapts the machine to a trigger facility callback.
func (m *Machine) Handler() trigger.Handler {
	return func(ctx context.Context, d trigger.Delivery) {
		if err := m.HandleTrigger(ctx, d); err != nil {
			slog.Warn("Trigger handling failed",
				logfields.TriggerID(d.ID), logfields.CycleID(d.CycleID), logfields.Error(err))
		}
	}
}

// HandleTrigger applies a trigger delivery. Deliveries for any cycle but the
// current one are ignored.
func (m *Machine) HandleTrigger(ctx context.Context, d trigger.Delivery) error {
	kind := string(d.Kind)
	_, err := m.run(ctx, "trigger."+kind, func(tx *txn) error {
		st := tx.st
		result := metrics.ResultHandled
		defer func() {
			tx.after = append(tx.after, func() { m.recorder.IncTriggerDelivery(kind, result) })
		}()

		if d.CycleID == "" || d.CycleID != st.CycleID() {
			result = metrics.ResultStale
			slog.Debug("Ignoring stale trigger",
				logfields.TriggerKind(kind), logfields.CycleID(d.CycleID),
				slog.String("current_cycle_id", st.CycleID()))
			return nil
		}

		switch d.Kind {
		case trigger.KindPreNotice:
			if st.Phase != state.PhaseScheduled || m.preNoticed == d.CycleID {
				result = metrics.ResultStale
				return nil
			}
			m.preNoticed = d.CycleID
			tx.notice(notify.KindPreNotice, d.CycleID, st.Cycle.SleepStartAt)
			return nil

		case trigger.KindSleepStart:
			if st.Phase != state.PhaseScheduled {
				result = metrics.ResultStale
				return nil
			}
			st.Phase = state.PhaseAwaiting
			tx.dirty = true
			tx.notice(notify.KindSleepPrompt, d.CycleID, st.Cycle.SleepStartAt)
			slog.Info("Awaiting sleep confirmation", logfields.CycleID(d.CycleID))
			return nil

		case trigger.KindGraceDeadline:
			if st.SleepStarted {
				result = metrics.ResultStale
				return nil
			}
			return m.expire(ctx, tx)

		default:
			result = metrics.ResultStale
			slog.Warn("Unknown trigger kind", logfields.TriggerKind(kind))
			return nil
		}
	})
	return err
}

// expire resets the streak after a missed grace window and schedules the same
// progress bedtime one day later.
func (m *Machine) expire(ctx context.Context, tx *txn) error {
	st := tx.st
	c := *st.Cycle
	st.ConsecutiveSuccessDays = 0
	st.StepMinutes = shift.StepFor(0)
	m.resolve(tx, c, state.OutcomeGraceExpired)
	tx.notice(notify.KindNightMissed, c.ID, c.SleepStartAt)
	tx.event(EventGraceExpired, c.ID)
	return m.schedule(ctx, tx, scheduler.ComputeTripleAfter(st.ProgressBedtime, later(tx.now, c.SleepStartAt)), true)
}

// OnUserConfirm records that sleep has begun for the awaiting cycle.
func (m *Machine) OnUserConfirm(ctx context.Context) (DisplayState, error) {
	return m.OnUserConfirmCycle(ctx, "")
}

// OnUserConfirmCycle is OnUserConfirm bound to a cycle id; an empty id
// matches the current cycle.
func (m *Machine) OnUserConfirmCycle(ctx context.Context, cycleID string) (DisplayState, error) {
	st, err := m.run(ctx, "confirm", func(tx *txn) error {
		if err := m.actionable(tx, "confirm", cycleID); err != nil {
			return err
		}
		st := tx.st
		c := *st.Cycle
		at := tx.now
		st.SleepStarted = true
		st.SleepStartedAt = &at
		st.ConsecutiveSuccessDays++
		st.StepMinutes = shift.StepFor(st.ConsecutiveSuccessDays)
		st.ProgressBedtime = shift.Advance(st.ProgressBedtime, st.TargetBedtime, st.StepMinutes)
		m.resolve(tx, c, state.OutcomeAdvanced)
		tx.event(EventSleepConfirmed, c.ID)
		return m.schedule(ctx, tx, scheduler.ComputeTripleAfter(st.ProgressBedtime, later(tx.now, c.SleepStartAt)), true)
	})
	return project(st), err
}

// OnUserSkip passes on the awaiting cycle. Streak and step are kept and the
// same progress bedtime is scheduled one day later.
func (m *Machine) OnUserSkip(ctx context.Context) (DisplayState, error) {
	return m.OnUserSkipCycle(ctx, "")
}

// OnUserSkipCycle is OnUserSkip bound to a cycle id; an empty id matches the
// current cycle.
func (m *Machine) OnUserSkipCycle(ctx context.Context, cycleID string) (DisplayState, error) {
	st, err := m.run(ctx, "skip", func(tx *txn) error {
		if err := m.actionable(tx, "skip", cycleID); err != nil {
			return err
		}
		c := *tx.st.Cycle
		m.resolve(tx, c, state.OutcomeSkipped)
		tx.event(EventNightSkipped, c.ID)
		return m.schedule(ctx, tx, scheduler.ComputeTripleAfter(tx.st.ProgressBedtime, later(tx.now, c.SleepStartAt)), true)
	})
	return project(st), err
}

// DisplayState returns the read-only projection for display.
func (m *Machine) DisplayState(ctx context.Context) (DisplayState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.store.Load(ctx)
	if err != nil {
		return DisplayState{}, err
	}
	return project(st), nil
}

// actionable rejects user actions outside the awaiting phase or for another cycle.
func (m *Machine) actionable(tx *txn, action, cycleID string) error {
	st := tx.st
	if st.Phase == state.PhaseAwaiting && st.Cycle != nil && (cycleID == "" || cycleID == st.Cycle.ID) {
		tx.after = append(tx.after, func() { m.recorder.IncUserAction(action, metrics.ResultSuccess) })
		return nil
	}
	tx.after = append(tx.after, func() { m.recorder.IncUserAction(action, metrics.ResultStale) })
	slog.Info("Ignoring stale user action",
		slog.String("action", action),
		logfields.CycleID(cycleID),
		logfields.Phase(string(st.Phase)),
		slog.String("current_cycle_id", st.CycleID()))
	return ErrStaleCycleAction.
		WithContext("action", action).
		WithContext("cycle_id", cycleID).
		WithContext("phase", string(st.Phase))
}

func (m *Machine) resolve(tx *txn, c state.Cycle, outcome state.Outcome) {
	tx.st.LastOutcome = outcome
	tx.st.LastResolvedCycleID = c.ID
	tx.dirty = true
	tx.after = append(tx.after, func() { m.recorder.IncCycleOutcome(string(outcome)) })
	slog.Info("Cycle resolved",
		logfields.CycleID(c.ID),
		logfields.Outcome(string(outcome)),
		logfields.Streak(tx.st.ConsecutiveSuccessDays),
		logfields.Step(tx.st.StepMinutes),
		logfields.Progress(tx.st.ProgressBedtime.String()))
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
