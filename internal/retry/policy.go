// Package retry shapes the backoff between retries of failed trigger registrations.
package retry

import (
	"time"

	"git.home.luguber.info/inful/bedshift/internal/config"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

// Policy is an immutable backoff description.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential
	Initial    time.Duration           // base delay
	Max        time.Duration           // cap for growth
	MaxRetries int                     // retries before giving up until the next foreground event
}

// DefaultPolicy is exponential from one minute, capped at thirty, ten retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffExponential, Initial: time.Minute, Max: 30 * time.Minute, MaxRetries: 10}
}

// NewPolicy builds a policy; zero or unknown values keep the defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// FromConfig builds a policy from the retry section of the configuration.
func FromConfig(c config.RetryConfig) Policy {
	initial, _ := time.ParseDuration(c.InitialDelay)
	maxDelay, _ := time.ParseDuration(c.MaxDelay)
	return NewPolicy(c.Backoff, initial, maxDelay, c.MaxRetries)
}

// Delay returns the wait before retry n (1-based). Non-positive n yields zero.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffExponential:
		// Stop doubling once past the cap so large n cannot overflow.
		d = p.Initial
		for i := 1; i < n && d < p.Max; i++ {
			d *= 2
		}
	default:
		d = time.Duration(n) * p.Initial
	}
	return min(d, p.Max)
}

// Validate rejects policies that cannot be applied.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return errors.ValidationError("retry initial delay must be positive").WithContext("initial", p.Initial.String()).Build()
	case p.Max <= 0:
		return errors.ValidationError("retry max delay must be positive").WithContext("max", p.Max.String()).Build()
	case p.MaxRetries < 0:
		return errors.ValidationError("retry count cannot be negative").WithContext("max_retries", p.MaxRetries).Build()
	}
	return nil
}
