package config

import (
	"fmt"
	"strings"
)

// Normalize folds enumerations to their canonical spelling and trims string
// fields. It returns a warning for each value it had to replace.
func Normalize(c *Config) []string {
	var warnings []string

	if raw := string(c.Logging.Level); raw != "" {
		if !logLevels.Known(raw) {
			warnings = append(warnings, fmt.Sprintf("logging.level %q unknown, using %q", raw, LogLevelInfo))
		}
		c.Logging.Level = logLevels.Normalize(raw)
	}
	if raw := string(c.Logging.Format); raw != "" {
		if !logFormats.Known(raw) {
			warnings = append(warnings, fmt.Sprintf("logging.format %q unknown, using %q", raw, LogFormatText))
		}
		c.Logging.Format = logFormats.Normalize(raw)
	}
	if raw := string(c.Retry.Backoff); raw != "" {
		mode := NormalizeRetryBackoff(raw)
		if mode == "" {
			warnings = append(warnings, fmt.Sprintf("retry.backoff %q unknown, using default", raw))
		}
		c.Retry.Backoff = mode
	}

	c.HTTP.Addr = strings.TrimSpace(c.HTTP.Addr)
	c.Triggers.Location = strings.TrimSpace(c.Triggers.Location)
	c.NATS.URL = strings.TrimSpace(c.NATS.URL)
	c.NATS.SubjectPrefix = strings.Trim(strings.TrimSpace(c.NATS.SubjectPrefix), ".")
	c.Locale = strings.TrimSpace(c.Locale)
	return warnings
}
