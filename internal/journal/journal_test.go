package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
)

var t0 = time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ev(typ adherence.EventType, cycle string, at time.Time, streak int) adherence.Event {
	return adherence.Event{
		Type:            typ,
		CycleID:         cycle,
		At:              at,
		ProgressBedtime: "22:30",
		TargetBedtime:   "21:00",
		Streak:          streak,
		StepMinutes:     30,
	}
}

func TestSQLiteStore_AppendAndByCycle(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, ev(adherence.EventCycleScheduled, "c1", t0.Add(-time.Hour), 0)))
	require.NoError(t, store.Append(ctx, ev(adherence.EventSleepConfirmed, "c1", t0, 1)))
	require.NoError(t, store.Append(ctx, ev(adherence.EventCycleScheduled, "c2", t0, 1)))

	entries, err := store.ByCycle(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, adherence.EventCycleScheduled, entries[0].Type)
	assert.Equal(t, adherence.EventSleepConfirmed, entries[1].Type)
	assert.Equal(t, 1, entries[1].Streak)
	assert.True(t, entries[1].At.Equal(t0))
	assert.Less(t, entries[0].ID, entries[1].ID)

	none, err := store.ByCycle(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_Range(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	for day := range 5 {
		require.NoError(t, store.Append(ctx, ev(adherence.EventSleepConfirmed, "c", t0.AddDate(0, 0, day), day+1)))
	}

	entries, err := store.Range(ctx, t0.AddDate(0, 0, 1), t0.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].Streak)
	assert.Equal(t, 4, entries[2].Streak)
}

func TestSQLiteStore_File(t *testing.T) {
	path := t.TempDir() + "/journal.db"
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), ev(adherence.EventNightSkipped, "c1", t0, 2)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entries, err := reopened.ByCycle(t.Context(), "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, adherence.EventNightSkipped, entries[0].Type)
}

func TestSummarize(t *testing.T) {
	entries := []Entry{
		{ID: 1, Event: ev(adherence.EventCycleScheduled, "c1", t0, 0)},
		{ID: 2, Event: ev(adherence.EventSleepConfirmed, "c1", t0, 1)},
		{ID: 3, Event: ev(adherence.EventSleepConfirmed, "c2", t0.AddDate(0, 0, 1), 2)},
		{ID: 4, Event: ev(adherence.EventNightSkipped, "c3", t0.AddDate(0, 0, 2), 2)},
		{ID: 5, Event: ev(adherence.EventSleepConfirmed, "c4", t0.AddDate(0, 0, 3), 3)},
		{ID: 6, Event: ev(adherence.EventGraceExpired, "c5", t0.AddDate(0, 0, 4), 0)},
		{ID: 7, Event: ev(adherence.EventSleepConfirmed, "c6", t0.AddDate(0, 0, 5), 1)},
		{ID: 8, Event: ev(adherence.EventSchedulingDenied, "c7", t0.AddDate(0, 0, 5), 1)},
	}

	s := Summarize(entries)
	assert.Equal(t, 4, s.Confirmed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Missed)
	assert.Equal(t, 1, s.Denied)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)
	require.NotNil(t, s.FirstAt)
	assert.Equal(t, t0, *s.FirstAt)
	assert.Equal(t, t0.AddDate(0, 0, 5), *s.LastAt)

	assert.Equal(t, Summary{}, Summarize(nil))
}
