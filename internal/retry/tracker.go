package retry

import (
	"sync"
	"time"
)

// Tracker paces repeated attempts of one operation with a Policy. It is safe
// for concurrent use.
type Tracker struct {
	policy Policy

	mu       sync.Mutex
	failures int
	next     time.Time
}

// NewTracker returns a Tracker that is immediately ready.
func NewTracker(p Policy) *Tracker {
	return &Tracker{policy: p}
}

// Ready reports whether an attempt may run at now.
func (t *Tracker) Ready(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures > t.policy.MaxRetries {
		return false
	}
	return !now.Before(t.next)
}

// Failed records a failed attempt at now and returns the next allowed instant.
func (t *Tracker) Failed(now time.Time) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
	t.next = now.Add(t.policy.Delay(t.failures))
	return t.next
}

// Reset clears the failure history.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = 0
	t.next = time.Time{}
}

// Failures is the number of consecutive failures recorded.
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// Exhausted reports whether the retry budget is spent.
func (t *Tracker) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures > t.policy.MaxRetries
}
