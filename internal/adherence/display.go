package adherence

import (
	"time"

	"git.home.luguber.info/inful/bedshift/internal/shift"
	"git.home.luguber.info/inful/bedshift/internal/state"
	"git.home.luguber.info/inful/bedshift/internal/timeofday"
	"git.home.luguber.info/inful/bedshift/internal/trigger"
)

// DisplayState is the read-only projection of the schedule for display.
type DisplayState struct {
	Configured             bool                `json:"configured"`
	ProgressBedtime        timeofday.TimeOfDay `json:"progress_bedtime"`
	TargetBedtime          timeofday.TimeOfDay `json:"target_bedtime"`
	NextAlarmEpoch         *time.Time          `json:"next_alarm_epoch,omitempty"`
	ConsecutiveSuccessDays int                 `json:"consecutive_success_days"`
	StepMinutes            int                 `json:"step_minutes"`
	RemainingMinutes       int                 `json:"remaining_minutes"`
	Phase                  state.Phase         `json:"phase"`
	CycleID                string              `json:"cycle_id,omitempty"`
	DeliveryMode           trigger.Mode        `json:"delivery_mode,omitempty"`
	ReschedulePending      bool                `json:"reschedule_pending"`
	LastOutcome            state.Outcome       `json:"last_outcome,omitempty"`
}

func project(st *state.ScheduleState) DisplayState {
	if st == nil {
		return DisplayState{}
	}
	d := DisplayState{
		Configured:             st.Configured,
		ProgressBedtime:        st.ProgressBedtime,
		TargetBedtime:          st.TargetBedtime,
		ConsecutiveSuccessDays: st.ConsecutiveSuccessDays,
		StepMinutes:            st.StepMinutes,
		Phase:                  st.Phase,
		CycleID:                st.CycleID(),
		ReschedulePending:      st.ReschedulePending,
		LastOutcome:            st.LastOutcome,
	}
	if st.Configured {
		d.RemainingMinutes = shift.Remaining(st.ProgressBedtime, st.TargetBedtime)
	}
	if st.NextAlarmEpoch != nil {
		at := *st.NextAlarmEpoch
		d.NextAlarmEpoch = &at
	}
	if st.Cycle != nil {
		d.DeliveryMode = st.Cycle.Mode
	}
	return d
}
