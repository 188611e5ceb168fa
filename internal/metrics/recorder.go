package metrics

import "time"

// ResultLabel enumerates result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultDenied  ResultLabel = "denied"
	ResultFailed  ResultLabel = "failed"
	ResultStale   ResultLabel = "stale"
	ResultHandled ResultLabel = "handled"
)

// Recorder defines observability hooks for scheduling and adherence metrics.
type Recorder interface {
	IncCycleOutcome(outcome string)
	IncTriggerDelivery(kind string, result ResultLabel)
	IncUserAction(action string, result ResultLabel)
	IncScheduling(mode string, result ResultLabel)
	SetStreak(days int)
	SetStepMinutes(minutes int)
	SetRemainingMinutes(minutes int)
	ObserveTransitionDuration(event string, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncCycleOutcome(string)                          {}
func (NoopRecorder) IncTriggerDelivery(string, ResultLabel)          {}
func (NoopRecorder) IncUserAction(string, ResultLabel)               {}
func (NoopRecorder) IncScheduling(string, ResultLabel)               {}
func (NoopRecorder) SetStreak(int)                                   {}
func (NoopRecorder) SetStepMinutes(int)                              {}
func (NoopRecorder) SetRemainingMinutes(int)                         {}
func (NoopRecorder) ObserveTransitionDuration(string, time.Duration) {}
