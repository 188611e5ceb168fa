package journal

import (
	"time"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
)

// Summary is a read model over a span of the journal.
type Summary struct {
	Confirmed     int        `json:"confirmed"`
	Skipped       int        `json:"skipped"`
	Missed        int        `json:"missed"`
	Denied        int        `json:"scheduling_denied"`
	CurrentStreak int        `json:"current_streak"`
	LongestStreak int        `json:"longest_streak"`
	FirstAt       *time.Time `json:"first_at,omitempty"`
	LastAt        *time.Time `json:"last_at,omitempty"`
}

// Summarize folds entries, oldest first, into a Summary. Resolution events
// carry the streak after the transition, so the current streak is the one on
// the last resolution and the longest is the maximum seen.
func Summarize(entries []Entry) Summary {
	var s Summary
	for i := range entries {
		e := entries[i].Event
		switch e.Type {
		case adherence.EventSleepConfirmed:
			s.Confirmed++
			s.CurrentStreak = e.Streak
		case adherence.EventNightSkipped:
			s.Skipped++
			s.CurrentStreak = e.Streak
		case adherence.EventGraceExpired:
			s.Missed++
			s.CurrentStreak = 0
		case adherence.EventSchedulingDenied:
			s.Denied++
		}
		s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)

		at := e.At
		if s.FirstAt == nil {
			s.FirstAt = &at
		}
		s.LastAt = &at
	}
	return s
}
