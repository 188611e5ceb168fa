package shift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bedshift/internal/timeofday"
)

func TestStepFor(t *testing.T) {
	cases := []struct {
		streak int
		want   int
	}{
		{0, 30}, {1, 30}, {2, 40}, {3, 40}, {4, 50}, {6, 50}, {7, 60}, {100, 60}, {-1, 30},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StepFor(c.streak), "streak %d", c.streak)
	}
}

func TestStepForIsMonotonic(t *testing.T) {
	prev := StepFor(0)
	for streak := 0; streak <= 60; streak++ {
		step := StepFor(streak)
		assert.True(t, ValidStep(step), "streak %d produced %d", streak, step)
		assert.GreaterOrEqual(t, step, prev, "streak %d", streak)
		prev = step
	}
	assert.False(t, ValidStep(20))
}

func TestAdvance(t *testing.T) {
	p := timeofday.MustParse

	t.Run("moves earlier", func(t *testing.T) {
		assert.Equal(t, "22:30", Advance(p("23:00"), p("21:00"), 30).String())
	})
	t.Run("clamps on overshoot", func(t *testing.T) {
		assert.Equal(t, "21:00", Advance(p("21:10"), p("21:00"), 50).String())
	})
	t.Run("exact landing", func(t *testing.T) {
		assert.Equal(t, "21:00", Advance(p("21:40"), p("21:00"), 40).String())
	})
	t.Run("target is a fixed point", func(t *testing.T) {
		assert.Equal(t, "21:00", Advance(p("21:00"), p("21:00"), 60).String())
	})
	t.Run("across midnight", func(t *testing.T) {
		assert.Equal(t, "23:50", Advance(p("00:20"), p("23:00"), 30).String())
		assert.Equal(t, "23:00", Advance(p("23:20"), p("23:00"), 30).String())
	})
	t.Run("non-positive step is a no-op", func(t *testing.T) {
		assert.Equal(t, "23:00", Advance(p("23:00"), p("21:00"), 0).String())
	})
}

func TestConvergenceSequence(t *testing.T) {
	progress := timeofday.MustParse("23:00")
	target := timeofday.MustParse("21:00")

	var got []string
	var steps []int
	for streak := 1; streak <= 6; streak++ {
		step := StepFor(streak)
		steps = append(steps, step)
		progress = Advance(progress, target, step)
		got = append(got, progress.String())
	}
	assert.Equal(t, []int{30, 40, 40, 50, 50, 50}, steps)
	assert.Equal(t, []string{"22:30", "21:50", "21:10", "21:00", "21:00", "21:00"}, got)
}

func TestConvergenceNeverOvershoots(t *testing.T) {
	for start := 0; start < timeofday.MinutesPerDay; start += 13 {
		for _, tgt := range []int{0, 21 * 60, 23*60 + 30, 5 * 60} {
			progress := timeofday.FromMinutes(start)
			target := timeofday.FromMinutes(tgt)
			remaining := Remaining(progress, target)
			for streak := 1; streak <= 60; streak++ {
				progress = Advance(progress, target, StepFor(streak))
				next := Remaining(progress, target)
				if remaining > 0 {
					require.Less(t, next, remaining, "start %d target %d streak %d", start, tgt, streak)
				} else {
					require.Equal(t, 0, next)
				}
				remaining = next
			}
			require.Equal(t, target, progress)
		}
	}
}

func TestTargetAndInitialProgress(t *testing.T) {
	p := timeofday.MustParse
	assert.Equal(t, "22:00", TargetBedtime(p("06:00"), DefaultSleepDurationMinutes).String())
	assert.Equal(t, "23:30", TargetBedtime(p("07:00"), 450).String())

	assert.Equal(t, "01:00", InitialProgress(p("01:00"), p("22:00")).String())
	assert.Equal(t, "22:00", InitialProgress(p("21:30"), p("22:00")).String())
}
