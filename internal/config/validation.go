package config

import (
	"net"
	"time"
)

// Validate checks a defaulted configuration.
func Validate(c *Config) error {
	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		return ErrInvalid.WithContext("http.addr", c.HTTP.Addr).Wrap(err)
	}
	for field, raw := range map[string]string{
		"daemon.resume_interval":  c.Daemon.ResumeInterval,
		"daemon.shutdown_timeout": c.Daemon.ShutdownTimeout,
		"retry.initial_delay":     c.Retry.InitialDelay,
		"retry.max_delay":         c.Retry.MaxDelay,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return ErrInvalid.WithContext(field, raw).Wrap(err)
		}
		if d <= 0 {
			return ErrInvalid.WithContext(field, raw).WithContext("reason", "must be positive")
		}
	}
	if c.Retry.MaxRetries < 0 {
		return ErrInvalid.WithContext("retry.max_retries", c.Retry.MaxRetries)
	}
	if _, err := c.LoadLocation(); err != nil {
		return err
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return ErrInvalid.WithContext("nats.url", "required when nats.enabled")
	}
	if c.Storage.StateDB == c.Storage.JournalDB && c.Storage.StateDB != ":memory:" {
		return ErrInvalid.WithContext("storage", "state_db and journal_db must differ")
	}
	return nil
}
