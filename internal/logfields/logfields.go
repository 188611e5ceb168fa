package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCycleID      = "cycle_id"
	KeyTriggerID    = "trigger_id"
	KeyTriggerKind  = "trigger_kind"
	KeyDeliveryMode = "delivery_mode"
	KeyPhase        = "phase"
	KeyOutcome      = "outcome"
	KeyStreak       = "streak"
	KeyStep         = "step_minutes"
	KeyProgress     = "progress_bedtime"
	KeyTarget       = "target_bedtime"
	KeyInstant      = "at"
	KeyAttempt      = "attempt"
	KeyDurationMS   = "duration_ms"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func CycleID(id string) slog.Attr        { return slog.String(KeyCycleID, id) }
func TriggerID(id string) slog.Attr      { return slog.String(KeyTriggerID, id) }
func TriggerKind(k string) slog.Attr     { return slog.String(KeyTriggerKind, k) }
func DeliveryMode(m string) slog.Attr    { return slog.String(KeyDeliveryMode, m) }
func Phase(p string) slog.Attr           { return slog.String(KeyPhase, p) }
func Outcome(o string) slog.Attr         { return slog.String(KeyOutcome, o) }
func Streak(n int) slog.Attr             { return slog.Int(KeyStreak, n) }
func Step(minutes int) slog.Attr         { return slog.Int(KeyStep, minutes) }
func Progress(hhmm string) slog.Attr     { return slog.String(KeyProgress, hhmm) }
func Target(hhmm string) slog.Attr       { return slog.String(KeyTarget, hhmm) }
func Instant(t time.Time) slog.Attr      { return slog.Time(KeyInstant, t) }
func Attempt(n int) slog.Attr            { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
