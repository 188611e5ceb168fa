package timeofday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	valid := map[string]int{
		"00:00": 0,
		"7:05":  7*60 + 5,
		"21:00": 21 * 60,
		"23:59": MinutesPerDay - 1,
		" 22:30 ": 22*60 + 30,
	}
	for in, want := range valid {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Minutes(), in)
	}

	for _, in := range []string{"", "24:00", "12:60", "12", "12:5", "ab:cd", "-1:30", "+1:30", "123:00", "12:30:00"} {
		_, err := Parse(in)
		require.Error(t, err, in)
		assert.ErrorIs(t, err, ErrInvalidTimeInput, in)
	}
}

func TestAddMinutesWraps(t *testing.T) {
	assert.Equal(t, "00:20", AddMinutes(MustParse("23:50"), 30).String())
	assert.Equal(t, "23:40", AddMinutes(MustParse("00:10"), -30).String())
	assert.Equal(t, "21:00", AddMinutes(MustParse("21:00"), MinutesPerDay).String())
	assert.Equal(t, "21:00", AddMinutes(MustParse("21:00"), -3*MinutesPerDay).String())
	assert.Equal(t, 0, MinutesOfDay(FromMinutes(MinutesPerDay)))
}

func TestMinutesEarlier(t *testing.T) {
	assert.Equal(t, 120, MinutesEarlier(MustParse("23:00"), MustParse("21:00")))
	assert.Equal(t, 0, MinutesEarlier(MustParse("21:00"), MustParse("21:00")))
	// 00:30 back to 23:00 crosses midnight.
	assert.Equal(t, 90, MinutesEarlier(MustParse("00:30"), MustParse("23:00")))
	assert.Equal(t, MinutesPerDay-60, MinutesEarlier(MustParse("20:00"), MustParse("21:00")))
}

func TestNextOccurrence(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 14, 21, 15, 30, 0, loc)

	t.Run("later today", func(t *testing.T) {
		got := NextOccurrence(MustParse("23:00"), now)
		assert.Equal(t, time.Date(2026, 10, 14, 23, 0, 0, 0, loc), got)
	})

	t.Run("already passed resolves tomorrow", func(t *testing.T) {
		got := NextOccurrence(MustParse("21:00"), now)
		assert.Equal(t, time.Date(2026, 10, 15, 21, 0, 0, 0, loc), got)
	})

	t.Run("current minute is never now", func(t *testing.T) {
		got := NextOccurrence(MustParse("21:15"), now)
		assert.Equal(t, time.Date(2026, 10, 15, 21, 15, 0, 0, loc), got)
		assert.True(t, got.After(now))
	})

	t.Run("month rollover", func(t *testing.T) {
		end := time.Date(2026, 10, 31, 23, 30, 0, 0, loc)
		got := NextOccurrence(MustParse("22:00"), end)
		assert.Equal(t, time.Date(2026, 11, 1, 22, 0, 0, 0, loc), got)
	})

	t.Run("result is never before now", func(t *testing.T) {
		for m := 0; m < MinutesPerDay; m += 7 {
			got := NextOccurrence(FromMinutes(m), now)
			assert.True(t, got.After(now), "minute %d", m)
			assert.Less(t, got.Sub(now), 24*time.Hour+time.Minute)
			assert.Equal(t, m, Of(got).Minutes())
		}
	})
}

func TestNextOccurrenceAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks go back on 2026-10-25 at 03:00.
	now := time.Date(2026, 10, 24, 23, 30, 0, 0, loc)
	got := NextOccurrence(MustParse("23:00"), now)
	assert.Equal(t, time.Date(2026, 10, 25, 23, 0, 0, 0, loc), got)
	assert.Equal(t, 24*time.Hour+30*time.Minute, got.Sub(now))
}

func TestTextRoundTrip(t *testing.T) {
	var v TimeOfDay
	require.NoError(t, v.UnmarshalText([]byte("06:45")))
	b, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "06:45", string(b))
	assert.Error(t, v.UnmarshalText([]byte("6h45")))
}
