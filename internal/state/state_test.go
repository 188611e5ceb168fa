package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bedshift/internal/timeofday"
	"git.home.luguber.info/inful/bedshift/internal/trigger"
)

func configuredState() *ScheduleState {
	s := Default()
	s.Configured = true
	s.CurrentBedtime = timeofday.MustParse("23:00")
	s.TargetWakeTime = timeofday.MustParse("05:00")
	s.TargetSleepDurationMinutes = 480
	s.TargetBedtime = timeofday.MustParse("21:00")
	s.ProgressBedtime = timeofday.MustParse("22:30")
	s.ConsecutiveSuccessDays = 2
	s.StepMinutes = 40
	s.LastOutcome = OutcomeAdvanced
	s.LastResolvedCycleID = "prev"
	s.UpdatedAt = time.Date(2026, 10, 14, 23, 1, 0, 0, time.UTC)
	start := time.Date(2026, 10, 15, 22, 30, 0, 0, time.UTC)
	s.BeginCycle(Cycle{
		ID:              "cycle-1",
		PreNoticeAt:     start.Add(-30 * time.Minute),
		SleepStartAt:    start,
		GraceDeadlineAt: start.Add(5 * time.Minute),
		Mode:            trigger.ModeExact,
	})
	return s
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.False(t, s.Configured)
	assert.Equal(t, 30, s.StepMinutes)
	assert.Equal(t, 0, s.ConsecutiveSuccessDays)
	assert.Equal(t, 480, s.TargetSleepDurationMinutes)
	assert.Equal(t, PhaseIdle, s.Phase)
	require.NoError(t, s.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(s *ScheduleState){
		"step outside set":            func(s *ScheduleState) { s.StepMinutes = 35 },
		"step not matching streak":    func(s *ScheduleState) { s.StepMinutes = 30 },
		"negative streak":             func(s *ScheduleState) { s.ConsecutiveSuccessDays = -1 },
		"zero duration":               func(s *ScheduleState) { s.TargetSleepDurationMinutes = 0 },
		"scheduled without cycle":     func(s *ScheduleState) { s.Cycle = nil },
		"idle with cycle":             func(s *ScheduleState) { s.Phase = PhaseIdle },
		"unknown phase":               func(s *ScheduleState) { s.Phase = "sleeping" },
		"sleepStartedAt without flag": func(s *ScheduleState) { now := time.Now(); s.SleepStartedAt = &now },
		"incoherent triple": func(s *ScheduleState) {
			s.Cycle.GraceDeadlineAt = s.Cycle.SleepStartAt.Add(-time.Minute)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := configuredState()
			mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidState)
		})
	}
	require.NoError(t, configuredState().Validate())
}

func TestBeginAndClearCycle(t *testing.T) {
	s := configuredState()
	now := time.Now()
	s.SleepStarted = true
	s.SleepStartedAt = &now

	c := *s.Cycle
	c.ID = "cycle-2"
	s.BeginCycle(c)
	assert.False(t, s.SleepStarted)
	assert.Nil(t, s.SleepStartedAt)
	require.NotNil(t, s.NextAlarmEpoch)
	assert.True(t, s.NextAlarmEpoch.Equal(c.SleepStartAt))
	assert.Equal(t, "cycle-2", s.CycleID())

	s.ClearCycle(true)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, s.CycleID())
	assert.Nil(t, s.NextAlarmEpoch)
	assert.True(t, s.ReschedulePending)
	require.NoError(t, s.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	s := configuredState()
	c := s.Clone()
	c.Cycle.ID = "mutated"
	*c.NextAlarmEpoch = c.NextAlarmEpoch.Add(time.Hour)
	assert.Equal(t, "cycle-1", s.Cycle.ID)
	assert.True(t, s.NextAlarmEpoch.Equal(s.Cycle.SleepStartAt))
}

func assertSameState(t *testing.T, want, got *ScheduleState) {
	t.Helper()
	assert.Equal(t, want.Configured, got.Configured)
	assert.Equal(t, want.ProgressBedtime, got.ProgressBedtime)
	assert.Equal(t, want.TargetBedtime, got.TargetBedtime)
	assert.Equal(t, want.CurrentBedtime, got.CurrentBedtime)
	assert.Equal(t, want.TargetWakeTime, got.TargetWakeTime)
	assert.Equal(t, want.TargetSleepDurationMinutes, got.TargetSleepDurationMinutes)
	assert.Equal(t, want.StepMinutes, got.StepMinutes)
	assert.Equal(t, want.ConsecutiveSuccessDays, got.ConsecutiveSuccessDays)
	assert.Equal(t, want.SleepStarted, got.SleepStarted)
	assert.Equal(t, want.Phase, got.Phase)
	assert.Equal(t, want.ReschedulePending, got.ReschedulePending)
	assert.Equal(t, want.LastOutcome, got.LastOutcome)
	assert.Equal(t, want.LastResolvedCycleID, got.LastResolvedCycleID)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	if want.NextAlarmEpoch == nil {
		assert.Nil(t, got.NextAlarmEpoch)
	} else {
		require.NotNil(t, got.NextAlarmEpoch)
		assert.True(t, want.NextAlarmEpoch.Equal(*got.NextAlarmEpoch))
	}
	if want.Cycle == nil {
		assert.Nil(t, got.Cycle)
		return
	}
	require.NotNil(t, got.Cycle)
	assert.Equal(t, want.Cycle.ID, got.Cycle.ID)
	assert.Equal(t, want.Cycle.Mode, got.Cycle.Mode)
	assert.True(t, want.Cycle.PreNoticeAt.Equal(got.Cycle.PreNoticeAt))
	assert.True(t, want.Cycle.SleepStartAt.Equal(got.Cycle.SleepStartAt))
	assert.True(t, want.Cycle.GraceDeadlineAt.Equal(got.Cycle.GraceDeadlineAt))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	ctx := t.Context()

	t.Run("first use yields defaults", func(t *testing.T) {
		s, err := store.Load(ctx)
		require.NoError(t, err)
		assert.False(t, s.Configured)
		assert.Equal(t, DefaultStepMinutes, s.StepMinutes)
	})

	want := configuredState()
	require.NoError(t, store.Save(ctx, want))

	t.Run("round trip", func(t *testing.T) {
		got, err := store.Load(ctx)
		require.NoError(t, err)
		assertSameState(t, want, got)
	})

	t.Run("clearing a cycle removes its keys", func(t *testing.T) {
		idle := want.Clone()
		idle.ClearCycle(true)
		require.NoError(t, store.Save(ctx, idle))
		got, err := store.Load(ctx)
		require.NoError(t, err)
		assertSameState(t, idle, got)
	})

	t.Run("invalid states are rejected", func(t *testing.T) {
		bad := want.Clone()
		bad.StepMinutes = 45
		require.ErrorIs(t, store.Save(ctx, bad), ErrInvalidState)
	})

	t.Run("survives reopen", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, want))
		require.NoError(t, store.Close())

		reopened, err := NewSQLiteStore(path)
		require.NoError(t, err)
		defer func() { _ = reopened.Close() }()
		got, err := reopened.Load(ctx)
		require.NoError(t, err)
		assertSameState(t, want, got)
	})
}

func TestSQLiteStoreCorruptValue(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := t.Context()

	require.NoError(t, store.Save(ctx, configuredState()))
	_, err = store.db.ExecContext(ctx, "UPDATE schedule_state SET value = '25:99' WHERE key = ?", KeyProgressBedtime)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrCorruptState)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	s, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, s.Configured)

	want := configuredState()
	require.NoError(t, store.Save(ctx, want))
	want.ConsecutiveSuccessDays = 99 // must not leak into the store

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ConsecutiveSuccessDays)
	assert.Equal(t, MemoryCalls{Load: 2, Save: 1}, store.Calls())
}
