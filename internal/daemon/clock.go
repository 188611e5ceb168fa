package daemon

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// zonedClock reports the current instant in a fixed location so bedtimes are
// resolved in the configured zone rather than the host's.
type zonedClock struct {
	clockwork.Clock
	loc *time.Location
}

func inLocation(c clockwork.Clock, loc *time.Location) clockwork.Clock {
	if loc == nil || loc == time.Local {
		return c
	}
	return zonedClock{Clock: c, loc: loc}
}

func (c zonedClock) Now() time.Time { return c.Clock.Now().In(c.loc) }
