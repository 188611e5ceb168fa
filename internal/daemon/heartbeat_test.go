package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/api"
	"git.home.luguber.info/inful/bedshift/internal/config"
	"git.home.luguber.info/inful/bedshift/internal/retry"
	"git.home.luguber.info/inful/bedshift/internal/scheduler"
)

type stubRetrier struct {
	calls   int
	pending bool
	errs    []error
}

func (s *stubRetrier) RetryPending(context.Context) (bool, error) {
	s.calls++
	if !s.pending {
		return false, nil
	}
	if len(s.errs) == 0 {
		s.pending = false
		return true, nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return true, err
}

func heartbeatDaemon(r *stubRetrier, p retry.Policy) (*Daemon, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC))
	d := &Daemon{clock: clock, retrier: r}
	d.retry.Store(retry.NewTracker(p))
	return d, clock
}

func TestHeartbeatBacksOffBetweenFailures(t *testing.T) {
	r := &stubRetrier{pending: true, errs: []error{scheduler.ErrSchedulingDenied, scheduler.ErrSchedulingDenied}}
	d, clock := heartbeatDaemon(r, retry.NewPolicy(config.RetryBackoffExponential, time.Minute, 10*time.Minute, 5))

	d.heartbeat(t.Context())
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, d.retry.Load().Failures())

	// Inside the first backoff window nothing is attempted.
	clock.Advance(30 * time.Second)
	d.heartbeat(t.Context())
	assert.Equal(t, 1, r.calls)

	clock.Advance(30 * time.Second)
	d.heartbeat(t.Context())
	assert.Equal(t, 2, r.calls)
	assert.Equal(t, 2, d.retry.Load().Failures())

	// Second failure doubles the wait.
	clock.Advance(time.Minute)
	d.heartbeat(t.Context())
	assert.Equal(t, 2, r.calls)

	clock.Advance(time.Minute)
	d.heartbeat(t.Context())
	assert.Equal(t, 3, r.calls)
	assert.Zero(t, d.retry.Load().Failures())
	assert.False(t, r.pending)
}

func TestHeartbeatStopsWhenExhausted(t *testing.T) {
	r := &stubRetrier{pending: true, errs: []error{
		scheduler.ErrSchedulingDenied, scheduler.ErrSchedulingDenied, scheduler.ErrSchedulingDenied,
	}}
	d, clock := heartbeatDaemon(r, retry.NewPolicy(config.RetryBackoffFixed, time.Minute, time.Minute, 1))

	d.heartbeat(t.Context())
	clock.Advance(time.Minute)
	d.heartbeat(t.Context())
	assert.Equal(t, 2, r.calls)
	assert.True(t, d.retry.Load().Exhausted())

	clock.Advance(time.Hour)
	d.heartbeat(t.Context())
	assert.Equal(t, 2, r.calls)
}

func TestHeartbeatIdleWhenNothingPending(t *testing.T) {
	r := &stubRetrier{}
	d, _ := heartbeatDaemon(r, retry.DefaultPolicy())
	d.heartbeat(t.Context())
	d.heartbeat(t.Context())
	assert.Equal(t, 2, r.calls)
	assert.Zero(t, d.retry.Load().Failures())
}

type stubMachine struct {
	api.Machine
	resumes int
}

func (s *stubMachine) Resume(context.Context) (adherence.DisplayState, error) {
	s.resumes++
	return adherence.DisplayState{}, scheduler.ErrSchedulingDenied
}

func TestForegroundResumeRearmsExhaustedRetries(t *testing.T) {
	r := &stubRetrier{pending: true, errs: []error{
		scheduler.ErrSchedulingDenied, scheduler.ErrSchedulingDenied, scheduler.ErrSchedulingDenied,
	}}
	d, clock := heartbeatDaemon(r, retry.NewPolicy(config.RetryBackoffFixed, time.Minute, time.Minute, 1))

	d.heartbeat(t.Context())
	clock.Advance(time.Minute)
	d.heartbeat(t.Context())
	require.True(t, d.retry.Load().Exhausted())

	m := &stubMachine{}
	fg := foreground{Machine: m, rearm: d.rearmRetries}
	_, err := fg.Resume(t.Context())
	require.ErrorIs(t, err, scheduler.ErrSchedulingDenied)
	assert.Equal(t, 1, m.resumes)
	assert.False(t, d.retry.Load().Exhausted())

	clock.Advance(time.Minute)
	d.heartbeat(t.Context())
	assert.Equal(t, 3, r.calls)
	assert.Equal(t, 1, d.retry.Load().Failures())

	clock.Advance(time.Minute)
	d.heartbeat(t.Context())
	assert.Equal(t, 4, r.calls)
	assert.Zero(t, d.retry.Load().Failures())
	assert.False(t, r.pending)
}
