package state

import (
	"time"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/shift"
	"git.home.luguber.info/inful/bedshift/internal/timeofday"
	"git.home.luguber.info/inful/bedshift/internal/trigger"
)

// Phase is the persisted position of the adherence state machine.
type Phase string

const (
	// PhaseIdle means no cycle is scheduled.
	PhaseIdle Phase = "idle"
	// PhaseScheduled means a full trigger triple is registered and sleep-start has not fired.
	PhaseScheduled Phase = "scheduled"
	// PhaseAwaiting means sleep-start fired and the grace window is open.
	PhaseAwaiting Phase = "awaiting"
)

// Outcome records how the last cycle was resolved.
type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeAdvanced     Outcome = "advanced"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeGraceExpired Outcome = "grace_expired"
)

// Defaults consumed once at state creation.
const (
	DefaultStepMinutes          = shift.DefaultStepMinutes
	DefaultConsecutiveSuccess   = 0
	DefaultSleepDurationMinutes = shift.DefaultSleepDurationMinutes
)

// Cycle is one night's registered trigger triple.
type Cycle struct {
	ID              string
	PreNoticeAt     time.Time
	SleepStartAt    time.Time
	GraceDeadlineAt time.Time
	Mode            trigger.Mode
}

// ScheduleState is the migration plan for the single user of this install.
type ScheduleState struct {
	// Configured is false until the setup flow has run.
	Configured bool

	CurrentBedtime             timeofday.TimeOfDay
	TargetWakeTime             timeofday.TimeOfDay
	TargetSleepDurationMinutes int
	TargetBedtime              timeofday.TimeOfDay
	ProgressBedtime            timeofday.TimeOfDay

	StepMinutes            int
	ConsecutiveSuccessDays int

	SleepStarted   bool
	SleepStartedAt *time.Time
	NextAlarmEpoch *time.Time

	Phase             Phase
	Cycle             *Cycle
	ReschedulePending bool

	LastOutcome         Outcome
	LastResolvedCycleID string

	UpdatedAt time.Time
}

// Default returns the first-use state: no plan, default step and streak.
func Default() *ScheduleState {
	return &ScheduleState{
		TargetSleepDurationMinutes: DefaultSleepDurationMinutes,
		StepMinutes:                DefaultStepMinutes,
		ConsecutiveSuccessDays:     DefaultConsecutiveSuccess,
		Phase:                      PhaseIdle,
	}
}

// Clone returns a deep copy.
func (s *ScheduleState) Clone() *ScheduleState {
	if s == nil {
		return nil
	}
	c := *s
	c.SleepStartedAt = cloneTime(s.SleepStartedAt)
	c.NextAlarmEpoch = cloneTime(s.NextAlarmEpoch)
	if s.Cycle != nil {
		cy := *s.Cycle
		c.Cycle = &cy
	}
	return &c
}

// CycleID returns the current cycle id, or "" when idle.
func (s *ScheduleState) CycleID() string {
	if s.Cycle == nil {
		return ""
	}
	return s.Cycle.ID
}

// BeginCycle installs a freshly registered cycle and clears the per-night flags.
func (s *ScheduleState) BeginCycle(c Cycle) {
	s.Cycle = &c
	s.Phase = PhaseScheduled
	s.SleepStarted = false
	s.SleepStartedAt = nil
	s.ReschedulePending = false
	at := c.SleepStartAt
	s.NextAlarmEpoch = &at
}

// ClearCycle drops the current cycle; pending marks that a registration is owed.
func (s *ScheduleState) ClearCycle(pending bool) {
	s.Cycle = nil
	s.Phase = PhaseIdle
	s.SleepStarted = false
	s.SleepStartedAt = nil
	s.NextAlarmEpoch = nil
	s.ReschedulePending = pending
}

// Validate checks the aggregate invariants.
func (s *ScheduleState) Validate() error {
	if !shift.ValidStep(s.StepMinutes) {
		return ErrInvalidState.WithContext("step_minutes", s.StepMinutes)
	}
	if s.ConsecutiveSuccessDays < 0 {
		return ErrInvalidState.WithContext("consecutive_success_days", s.ConsecutiveSuccessDays)
	}
	if s.StepMinutes != shift.StepFor(s.ConsecutiveSuccessDays) {
		return ErrInvalidState.WithContext("step_minutes", s.StepMinutes).
			WithContext("consecutive_success_days", s.ConsecutiveSuccessDays)
	}
	if s.TargetSleepDurationMinutes <= 0 || s.TargetSleepDurationMinutes >= timeofday.MinutesPerDay {
		return ErrInvalidState.WithContext("target_sleep_duration_minutes", s.TargetSleepDurationMinutes)
	}
	if !s.SleepStarted && s.SleepStartedAt != nil {
		return ErrInvalidState.WithContext("sleep_started_at", "set without sleep_started")
	}
	switch s.Phase {
	case PhaseIdle:
		if s.Cycle != nil {
			return ErrInvalidState.WithContext("phase", "idle with a registered cycle")
		}
	case PhaseScheduled, PhaseAwaiting:
		if s.Cycle == nil || s.Cycle.ID == "" {
			return ErrInvalidState.WithContext("phase", string(s.Phase)+" without a cycle")
		}
		if !s.Cycle.PreNoticeAt.Before(s.Cycle.SleepStartAt) || !s.Cycle.SleepStartAt.Before(s.Cycle.GraceDeadlineAt) {
			return ErrInvalidState.WithContext("cycle", "incoherent trigger triple")
		}
	default:
		return ErrInvalidState.WithContext("phase", string(s.Phase))
	}
	if s.Phase != PhaseIdle && !s.Configured {
		return ErrInvalidState.WithContext("phase", "cycle scheduled without a plan")
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ErrInvalidState is returned when a state violates its invariants.
var ErrInvalidState = errors.InternalError("schedule state violates invariants").Build()
