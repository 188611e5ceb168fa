package adherence

import "git.home.luguber.info/inful/bedshift/internal/foundation/errors"

var (
	// ErrStaleCycleAction is returned when a user action does not apply to the
	// current cycle. It is informational; the state is unchanged.
	ErrStaleCycleAction = errors.CycleError("action does not apply to the current cycle").Build()

	// ErrNotConfigured is returned by operations that need a bedtime plan.
	ErrNotConfigured = errors.NotFoundError("no bedtime plan configured").Build()

	// ErrInvalidDuration rejects sleep durations outside (0, 1440) minutes.
	ErrInvalidDuration = errors.ValidationError("sleep duration must be between 1 and 1439 minutes").Build()
)
