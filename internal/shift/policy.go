// Package shift holds the streak-driven bedtime shift policy.
package shift

import "git.home.luguber.info/inful/bedshift/internal/timeofday"

// Step sizes in minutes, indexed by streak thresholds.
const (
	DefaultStepMinutes = 30
	StepTwoNights      = 40
	StepFourNights     = 50
	StepSevenNights    = 60

	// DefaultSleepDurationMinutes is the goal duration used when the survey omits it.
	DefaultSleepDurationMinutes = 8 * 60
)

// StepFor maps a success streak to the nightly shift in minutes.
func StepFor(streak int) int {
	switch {
	case streak >= 7:
		return StepSevenNights
	case streak >= 4:
		return StepFourNights
	case streak >= 2:
		return StepTwoNights
	default:
		return DefaultStepMinutes
	}
}

// ValidStep reports whether minutes is a step StepFor can produce.
func ValidStep(minutes int) bool {
	switch minutes {
	case DefaultStepMinutes, StepTwoNights, StepFourNights, StepSevenNights:
		return true
	}
	return false
}

// Advance moves progress earlier by step minutes. A step that would reach or
// cross target clamps to target, so target is a fixed point.
func Advance(progress, target timeofday.TimeOfDay, step int) timeofday.TimeOfDay {
	if step <= 0 {
		return progress
	}
	if step >= timeofday.MinutesEarlier(progress, target) {
		return target
	}
	return progress.Add(-step)
}

// TargetBedtime derives the goal bedtime from the goal wake time and sleep duration.
func TargetBedtime(wake timeofday.TimeOfDay, durationMinutes int) timeofday.TimeOfDay {
	return wake.Add(-durationMinutes)
}

// InitialProgress is the first enforced bedtime for a new plan. A current
// bedtime that is already earlier than target (the short way round the
// clock) has nothing to converge and starts at target.
func InitialProgress(current, target timeofday.TimeOfDay) timeofday.TimeOfDay {
	if timeofday.MinutesEarlier(current, target) > timeofday.MinutesPerDay/2 {
		return target
	}
	return current
}

// Remaining is the distance still to cover, in minutes.
func Remaining(progress, target timeofday.TimeOfDay) int {
	return timeofday.MinutesEarlier(progress, target)
}
