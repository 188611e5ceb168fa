package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1.0"`))
	require.NoError(t, err)

	assert.Equal(t, DefaultStateDB, cfg.Storage.StateDB)
	assert.Equal(t, DefaultJournalDB, cfg.Storage.JournalDB)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTP.Addr)
	assert.True(t, cfg.ExactAllowed())
	assert.Equal(t, 15*time.Minute, cfg.ResumeInterval())
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Backoff)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, "en", cfg.Locale)
	assert.False(t, cfg.NATS.Enabled)
	assert.Empty(t, cfg.Warnings())

	loc, err := cfg.LoadLocation()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestParse_Full(t *testing.T) {
	t.Setenv("BEDSHIFT_TEST_NATS", "nats://broker:4222")

	cfg, err := Parse([]byte(`
version: "1.0"
storage:
  state_db: /var/lib/bedshift/state.db
  journal_db: /var/lib/bedshift/journal.db
http:
  addr: " 127.0.0.1:9000 "
triggers:
  exact_allowed: false
  location: Europe/Oslo
daemon:
  resume_interval: 5m
retry:
  backoff: LINEAR
  initial_delay: 10s
  max_delay: 1m
  max_retries: 3
nats:
  enabled: true
  url: ${BEDSHIFT_TEST_NATS}
  subject_prefix: "home.bedshift."
logging:
  level: Warning
  format: JSON
metrics:
  enabled: true
locale: nb
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.False(t, cfg.ExactAllowed())
	assert.Equal(t, 5*time.Minute, cfg.ResumeInterval())
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "home.bedshift", cfg.NATS.SubjectPrefix)
	assert.Equal(t, DefaultStream, cfg.NATS.Stream)
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "nb", cfg.Locale)

	loc, err := cfg.LoadLocation()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Oslo", loc.String())
}

func TestParse_NormalizationWarnings(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1.0\"\nlogging:\n  level: loud\nretry:\n  backoff: random\n"))
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Backoff)
	assert.Len(t, cfg.Warnings(), 2)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"wrong version", `version: "2.0"`},
		{"missing version", `storage: {}`},
		{"bad yaml", "version: [1"},
		{"bad addr", "version: \"1.0\"\nhttp:\n  addr: nope\n"},
		{"bad duration", "version: \"1.0\"\ndaemon:\n  resume_interval: soon\n"},
		{"negative duration", "version: \"1.0\"\nretry:\n  max_delay: -1s\n"},
		{"negative retries", "version: \"1.0\"\nretry:\n  max_retries: -1\n"},
		{"bad location", "version: \"1.0\"\ntriggers:\n  location: Mars/Olympus\n"},
		{"shared db", "version: \"1.0\"\nstorage:\n  state_db: x.db\n  journal_db: x.db\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrInvalid)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, ErrNotFound)

	path := filepath.Join(dir, "bedshift.yaml")
	require.NoError(t, Init(path, false))
	require.ErrorIs(t, Init(path, false), ErrExists)
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, "Europe/Oslo", cfg.Triggers.Location)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.ErrorIs(t, loadEnvFile(), os.ErrNotExist)

	require.NoError(t, os.WriteFile(".env", []byte("BEDSHIFT_TEST_FROM_DOTENV=yes\n"), 0o600))
	t.Setenv("BEDSHIFT_TEST_FROM_DOTENV", "")
	require.NoError(t, os.Unsetenv("BEDSHIFT_TEST_FROM_DOTENV"))
	require.NoError(t, loadEnvFile())
	assert.Equal(t, "yes", os.Getenv("BEDSHIFT_TEST_FROM_DOTENV"))
}
