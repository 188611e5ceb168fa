package state

import (
	"strconv"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/timeofday"
	"git.home.luguber.info/inful/bedshift/internal/trigger"
)

// Persisted keys. The first block is the user-facing layout; the second is
// the cycle bookkeeping the state machine needs across restarts.
const (
	KeyProgressBedtime            = "progressBedtime"
	KeyTargetBedtime              = "targetBedtime"
	KeyCurrentBedtime             = "currentBedtime"
	KeyTargetWakeTime             = "targetWakeTime"
	KeyTargetSleepDurationMinutes = "targetSleepDurationMinutes"
	KeyStepMinutes                = "stepMinutes"
	KeyConsecutiveSuccessDays     = "consecutiveSuccessDays"
	KeySleepStarted               = "sleepStarted"
	KeySleepStartedAt             = "sleepStartedAt"
	KeyNextAlarmEpoch             = "nextAlarmEpoch"

	KeyConfigured          = "configured"
	KeyPhase               = "phase"
	KeyCycleID             = "cycleID"
	KeyPreNoticeAt         = "preNoticeAt"
	KeySleepStartAt        = "sleepStartAt"
	KeyGraceDeadlineAt     = "graceDeadlineAt"
	KeyDeliveryMode        = "deliveryMode"
	KeyReschedulePending   = "reschedulePending"
	KeyLastOutcome         = "lastOutcome"
	KeyLastResolvedCycleID = "lastResolvedCycleID"
	KeyUpdatedAt           = "updatedAt"
)

// encode flattens s into key/value pairs. Absent optionals encode as "".
func encode(s *ScheduleState) map[string]string {
	kv := map[string]string{
		KeyProgressBedtime:            s.ProgressBedtime.String(),
		KeyTargetBedtime:              s.TargetBedtime.String(),
		KeyCurrentBedtime:             s.CurrentBedtime.String(),
		KeyTargetWakeTime:             s.TargetWakeTime.String(),
		KeyTargetSleepDurationMinutes: strconv.Itoa(s.TargetSleepDurationMinutes),
		KeyStepMinutes:                strconv.Itoa(s.StepMinutes),
		KeyConsecutiveSuccessDays:     strconv.Itoa(s.ConsecutiveSuccessDays),
		KeySleepStarted:               strconv.FormatBool(s.SleepStarted),
		KeySleepStartedAt:             formatOptional(s.SleepStartedAt),
		KeyNextAlarmEpoch:             formatOptional(s.NextAlarmEpoch),
		KeyConfigured:                 strconv.FormatBool(s.Configured),
		KeyPhase:                      string(s.Phase),
		KeyReschedulePending:          strconv.FormatBool(s.ReschedulePending),
		KeyLastOutcome:                string(s.LastOutcome),
		KeyLastResolvedCycleID:        s.LastResolvedCycleID,
		KeyUpdatedAt:                  formatTime(s.UpdatedAt),
		KeyCycleID:                    "",
		KeyPreNoticeAt:                "",
		KeySleepStartAt:               "",
		KeyGraceDeadlineAt:            "",
		KeyDeliveryMode:               "",
	}
	if c := s.Cycle; c != nil {
		kv[KeyCycleID] = c.ID
		kv[KeyPreNoticeAt] = formatTime(c.PreNoticeAt)
		kv[KeySleepStartAt] = formatTime(c.SleepStartAt)
		kv[KeyGraceDeadlineAt] = formatTime(c.GraceDeadlineAt)
		kv[KeyDeliveryMode] = string(c.Mode)
	}
	return kv
}

// decoder accumulates the first error so decode reads straight through.
type decoder struct {
	kv  map[string]string
	err error
}

func (d *decoder) fail(key string, err error) {
	if d.err == nil {
		d.err = ErrCorruptState.WithContext("key", key).Wrap(err)
	}
}

func (d *decoder) readTimeOfDay(key string, dst *timeofday.TimeOfDay) {
	v, ok := d.kv[key]
	if !ok || v == "" {
		return
	}
	t, err := timeofday.Parse(v)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = t
}

func (d *decoder) readInt(key string, dst *int) {
	v, ok := d.kv[key]
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = n
}

func (d *decoder) readBool(key string, dst *bool) {
	v, ok := d.kv[key]
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = b
}

func (d *decoder) readTime(key string) *time.Time {
	v, ok := d.kv[key]
	if !ok || v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		d.fail(key, err)
		return nil
	}
	return &t
}

// decode rebuilds a state from key/value pairs on top of Default().
func decode(kv map[string]string) (*ScheduleState, error) {
	s := Default()
	d := &decoder{kv: kv}

	d.readBool(KeyConfigured, &s.Configured)
	d.readTimeOfDay(KeyProgressBedtime, &s.ProgressBedtime)
	d.readTimeOfDay(KeyTargetBedtime, &s.TargetBedtime)
	d.readTimeOfDay(KeyCurrentBedtime, &s.CurrentBedtime)
	d.readTimeOfDay(KeyTargetWakeTime, &s.TargetWakeTime)
	d.readInt(KeyTargetSleepDurationMinutes, &s.TargetSleepDurationMinutes)
	d.readInt(KeyStepMinutes, &s.StepMinutes)
	d.readInt(KeyConsecutiveSuccessDays, &s.ConsecutiveSuccessDays)
	d.readBool(KeySleepStarted, &s.SleepStarted)
	s.SleepStartedAt = d.readTime(KeySleepStartedAt)
	s.NextAlarmEpoch = d.readTime(KeyNextAlarmEpoch)
	d.readBool(KeyReschedulePending, &s.ReschedulePending)
	s.LastOutcome = Outcome(kv[KeyLastOutcome])
	s.LastResolvedCycleID = kv[KeyLastResolvedCycleID]
	if u := d.readTime(KeyUpdatedAt); u != nil {
		s.UpdatedAt = *u
	}
	if p := kv[KeyPhase]; p != "" {
		s.Phase = Phase(p)
	}

	if id := kv[KeyCycleID]; id != "" {
		c := &Cycle{ID: id, Mode: trigger.Mode(kv[KeyDeliveryMode])}
		if t := d.readTime(KeyPreNoticeAt); t != nil {
			c.PreNoticeAt = *t
		}
		if t := d.readTime(KeySleepStartAt); t != nil {
			c.SleepStartAt = *t
		}
		if t := d.readTime(KeyGraceDeadlineAt); t != nil {
			c.GraceDeadlineAt = *t
		}
		s.Cycle = c
	}

	if d.err != nil {
		return nil, d.err
	}
	if err := s.Validate(); err != nil {
		return nil, ErrCorruptState.Wrap(err)
	}
	return s, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
