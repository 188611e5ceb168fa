package config

import "time"

// Defaults applied by ApplyDefaults.
const (
	DefaultStateDB         = "bedshift-state.db"
	DefaultJournalDB       = "bedshift-journal.db"
	DefaultHTTPAddr        = "127.0.0.1:8095"
	DefaultResumeInterval  = 15 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second
	DefaultNATSURL         = "nats://127.0.0.1:4222"
	DefaultSubjectPrefix   = "bedshift.adherence"
	DefaultStream          = "BEDSHIFT_ADHERENCE"
	DefaultKVBucket        = "bedshift_state"
	DefaultLocale          = "en"
)

// ApplyDefaults fills every unset field.
func ApplyDefaults(c *Config) {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	if c.Storage.StateDB == "" {
		c.Storage.StateDB = DefaultStateDB
	}
	if c.Storage.JournalDB == "" {
		c.Storage.JournalDB = DefaultJournalDB
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.Triggers.ExactAllowed == nil {
		allowed := true
		c.Triggers.ExactAllowed = &allowed
	}
	if c.Daemon.ResumeInterval == "" {
		c.Daemon.ResumeInterval = DefaultResumeInterval.String()
	}
	if c.Daemon.ShutdownTimeout == "" {
		c.Daemon.ShutdownTimeout = DefaultShutdownTimeout.String()
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = RetryBackoffExponential
	}
	if c.Retry.InitialDelay == "" {
		c.Retry.InitialDelay = "1m"
	}
	if c.Retry.MaxDelay == "" {
		c.Retry.MaxDelay = "30m"
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 10
	}
	if c.NATS.URL == "" {
		c.NATS.URL = DefaultNATSURL
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.NATS.Stream == "" {
		c.NATS.Stream = DefaultStream
	}
	if c.NATS.KVBucket == "" {
		c.NATS.KVBucket = DefaultKVBucket
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
}
