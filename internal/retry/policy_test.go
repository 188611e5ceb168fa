package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bedshift/internal/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, config.RetryBackoffExponential, p.Mode)
	assert.Equal(t, time.Minute, p.Initial)
	assert.Equal(t, 30*time.Minute, p.Max)
	assert.Equal(t, 10, p.MaxRetries)
	require.NoError(t, p.Validate())
}

func TestNewPolicy(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial, "initial clamped to max")
	assert.Equal(t, config.RetryBackoffFixed, p.Mode)
	assert.Equal(t, 5, p.MaxRetries)

	unknown := NewPolicy("weird", 0, 0, -1)
	assert.Equal(t, DefaultPolicy(), unknown)
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.RetryConfig{Backoff: config.RetryBackoffLinear, InitialDelay: "10s", MaxDelay: "1m", MaxRetries: 3})
	assert.Equal(t, Policy{Mode: config.RetryBackoffLinear, Initial: 10 * time.Second, Max: time.Minute, MaxRetries: 3}, p)
}

func TestDelay(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name string
		p    Policy
		want []time.Duration // attempts 1..n
	}{
		{"fixed", NewPolicy(config.RetryBackoffFixed, 100*ms, 500*ms, 3), []time.Duration{100 * ms, 100 * ms, 100 * ms}},
		{"linear", NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5), []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms}},
		{"exponential", NewPolicy(config.RetryBackoffExponential, 50*ms, 160*ms, 5), []time.Duration{50 * ms, 100 * ms, 160 * ms, 160 * ms}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				assert.Equal(t, want, tt.p.Delay(i+1), "attempt %d", i+1)
			}
			assert.Zero(t, tt.p.Delay(0))
			assert.Zero(t, tt.p.Delay(-1))
		})
	}

	huge := NewPolicy(config.RetryBackoffExponential, time.Second, time.Hour, 1)
	assert.Equal(t, time.Hour, huge.Delay(200))
}

func TestValidate(t *testing.T) {
	require.Error(t, Policy{Initial: 0, Max: time.Second}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: 0}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
	require.NoError(t, Policy{Initial: time.Second, Max: time.Second}.Validate())
}

func TestTracker(t *testing.T) {
	now := time.Date(2026, 10, 14, 22, 0, 0, 0, time.UTC)
	tr := NewTracker(NewPolicy(config.RetryBackoffLinear, time.Minute, 10*time.Minute, 2))

	assert.True(t, tr.Ready(now))

	next := tr.Failed(now)
	assert.Equal(t, now.Add(time.Minute), next)
	assert.False(t, tr.Ready(now.Add(30*time.Second)))
	assert.True(t, tr.Ready(next))

	next = tr.Failed(next)
	assert.Equal(t, now.Add(3*time.Minute), next)
	assert.False(t, tr.Exhausted())

	tr.Failed(next)
	assert.True(t, tr.Exhausted())
	assert.False(t, tr.Ready(next.Add(time.Hour)))
	assert.Equal(t, 3, tr.Failures())

	tr.Reset()
	assert.True(t, tr.Ready(now))
	assert.Zero(t, tr.Failures())
}
