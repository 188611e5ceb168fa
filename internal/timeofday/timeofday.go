package timeofday

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

// MinutesPerDay is the modulus for all time-of-day arithmetic.
const MinutesPerDay = 24 * 60

// ErrInvalidTimeInput is returned by Parse for malformed HH:mm strings.
var ErrInvalidTimeInput = errors.ValidationError("invalid time of day, expected HH:mm").Build()

// TimeOfDay is a minute of the day in [0, MinutesPerDay).
type TimeOfDay int

// New builds a TimeOfDay from hour and minute, wrapping out-of-range values.
func New(hour, minute int) TimeOfDay {
	return FromMinutes(hour*60 + minute)
}

// FromMinutes wraps m into [0, MinutesPerDay).
func FromMinutes(m int) TimeOfDay {
	m %= MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return TimeOfDay(m)
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	return New(t.Hour(), t.Minute())
}

// Parse reads a 24-hour "HH:mm" value. Single-digit hours are accepted.
func Parse(s string) (TimeOfDay, error) {
	raw := strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 || !digits(hh) || !digits(mm) {
		return 0, ErrInvalidTimeInput.WithContext("input", s)
	}
	h, herr := strconv.Atoi(hh)
	m, merr := strconv.Atoi(mm)
	if herr != nil || merr != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, ErrInvalidTimeInput.WithContext("input", s)
	}
	return New(h, m), nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MustParse is Parse for constants and tests; it panics on malformed input.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Minutes returns the minute of day in [0, MinutesPerDay).
func (t TimeOfDay) Minutes() int { return int(t) }

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add shifts t by delta minutes, wrapping modulo one day. Negative deltas move earlier.
func (t TimeOfDay) Add(delta int) TimeOfDay {
	return FromMinutes(int(t) + delta)
}

// String formats t as HH:mm.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MinutesOfDay returns t's minute of day.
func MinutesOfDay(t TimeOfDay) int { return t.Minutes() }

// AddMinutes returns t shifted by delta minutes modulo one day.
func AddMinutes(t TimeOfDay, delta int) TimeOfDay { return t.Add(delta) }

// MinutesEarlier is the number of minutes one must move backwards from "from"
// to reach "to", in [0, MinutesPerDay).
func MinutesEarlier(from, to TimeOfDay) int {
	return FromMinutes(int(from) - int(to)).Minutes()
}

// On returns the instant at t on the calendar day of day, in day's location.
func On(day time.Time, t TimeOfDay) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

// NextOccurrence returns the next instant whose time of day is t. It is today
// when t's minute is strictly ahead of now's minute of day, otherwise tomorrow,
// so a time equal to the current minute never resolves to now.
func NextOccurrence(t TimeOfDay, now time.Time) time.Time {
	if t.Minutes() > Of(now).Minutes() {
		return On(now, t)
	}
	y, m, d := now.Date()
	return On(time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()), t)
}
