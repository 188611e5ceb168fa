package daemon

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/api"
	"git.home.luguber.info/inful/bedshift/internal/config"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/state"
	"git.home.luguber.info/inful/bedshift/internal/trigger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.StateDB = filepath.Join(dir, "state.db")
	cfg.Storage.JournalDB = filepath.Join(dir, "journal.db")
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Triggers.Location = "UTC"
	cfg.Metrics.Enabled = true
	return cfg
}

// survey picks a bedtime far enough ahead that no trigger fires during the test.
func survey() adherence.Survey {
	bed := time.Now().UTC().Add(6 * time.Hour)
	return adherence.Survey{
		CurrentBedtime: bed.Format("15:04"),
		TargetWakeTime: bed.Add(7 * time.Hour).Format("15:04"),
	}
}

func startDaemon(t *testing.T, cfg *config.Config, opts ...Option) *Daemon {
	t.Helper()
	d, err := New(cfg, "", opts...)
	require.NoError(t, err)
	require.NoError(t, d.Start(t.Context()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })
	return d
}

func TestDaemonLifecycle(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)
	assert.Equal(t, StatusRunning, d.GetStatus())

	err := d.Start(t.Context())
	require.ErrorIs(t, err, ErrNotStopped)

	c := api.NewClient(d.Addr())
	ds, err := c.Setup(t.Context(), survey())
	require.NoError(t, err)
	assert.True(t, ds.Configured)
	assert.Equal(t, trigger.ModeExact, ds.DeliveryMode)

	regs := d.facility.Registrations()
	require.Len(t, regs, 3)
	for _, r := range regs {
		assert.Equal(t, ds.CycleID, r.CycleID)
	}

	require.Eventually(t, func() bool {
		h, err := c.History(t.Context(), 1, "")
		return err == nil && len(h.Events) == 1 && h.Events[0].Type == adherence.EventCycleScheduled
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + d.Addr() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "bedshift_scheduling_attempts_total")

	require.NoError(t, d.Stop(t.Context()))
	assert.Equal(t, StatusStopped, d.GetStatus())
	require.NoError(t, d.Stop(t.Context()))
}

func TestDaemonRestartRecoversCycle(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg, "")
	require.NoError(t, err)
	require.NoError(t, first.Start(t.Context()))
	ds, err := api.NewClient(first.Addr()).Setup(t.Context(), survey())
	require.NoError(t, err)
	require.NoError(t, first.Stop(t.Context()))

	second := startDaemon(t, cfg)
	after, err := api.NewClient(second.Addr()).State(t.Context())
	require.NoError(t, err)
	assert.True(t, after.Configured)
	assert.Equal(t, ds.CycleID, after.CycleID)
	assert.Equal(t, state.PhaseScheduled, after.Phase)
	assert.Len(t, second.facility.Registrations(), 3)
}

func TestDaemonStartsWithoutExactCapability(t *testing.T) {
	cfg := testConfig(t)
	denied := false
	cfg.Triggers.ExactAllowed = &denied
	d := startDaemon(t, cfg)

	ds, err := api.NewClient(d.Addr()).Setup(t.Context(), survey())
	require.NoError(t, err)
	assert.Equal(t, trigger.ModeAlarmClock, ds.DeliveryMode)
}

func TestDaemonListenFailure(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)

	clash := testConfig(t)
	clash.HTTP.Addr = d.Addr()
	other, err := New(clash, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Stop(context.Background()) })
	err = other.Start(t.Context())
	require.ErrorIs(t, err, ErrListen)
	assert.Equal(t, StatusError, other.GetStatus())
}

type fakePublisher struct {
	mu     sync.Mutex
	events []adherence.Event
	states []adherence.DisplayState
	closed bool
}

func (f *fakePublisher) PublishEvent(_ context.Context, e adherence.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) PutState(_ context.Context, ds adherence.DisplayState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, ds)
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePublisher) snapshot() (int, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events), len(f.states), f.closed
}

func TestDaemonPublishesEventsAndState(t *testing.T) {
	cfg := testConfig(t)
	cfg.NATS.Enabled = true
	pub := &fakePublisher{}
	d, err := New(cfg, "", WithPublisherFactory(func(context.Context, config.NATSConfig) (EventPublisher, error) {
		return pub, nil
	}))
	require.NoError(t, err)
	require.NoError(t, d.Start(t.Context()))

	_, err = api.NewClient(d.Addr()).Setup(t.Context(), survey())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, states, _ := pub.snapshot()
		return events == 1 && states >= 1
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, d.Stop(t.Context()))
	_, _, closed := pub.snapshot()
	assert.True(t, closed)
}

func TestDaemonPublisherUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.NATS.Enabled = true
	d := startDaemon(t, cfg, WithPublisherFactory(func(context.Context, config.NATSConfig) (EventPublisher, error) {
		return nil, errors.MessagingError("connection refused").Build()
	}))
	assert.Equal(t, StatusRunning, d.GetStatus())
	assert.Nil(t, d.publisher)
}

func TestReloadConfig(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)
	_, err := api.NewClient(d.Addr()).Setup(t.Context(), survey())
	require.NoError(t, err)

	t.Run("exact capability is applied live", func(t *testing.T) {
		next := *cfg
		denied := false
		next.Triggers.ExactAllowed = &denied
		require.NoError(t, d.ReloadConfig(t.Context(), &next))
		assert.False(t, d.facility.CanScheduleExact())
		for _, r := range d.facility.Registrations() {
			assert.Equal(t, trigger.ModeAlarmClock, r.Mode)
		}
		assert.Same(t, &next, d.GetConfig())
	})

	t.Run("storage change needs restart", func(t *testing.T) {
		next := *d.GetConfig()
		next.Storage.StateDB = filepath.Join(t.TempDir(), "other.db")
		err := d.ReloadConfig(t.Context(), &next)
		require.ErrorIs(t, err, ErrRestartRequired)
		assert.NotEqual(t, next.Storage.StateDB, d.GetConfig().Storage.StateDB)
	})
}

func TestRestartFields(t *testing.T) {
	a := config.Default()
	b := config.Default()
	assert.Empty(t, restartFields(a, b))

	b.HTTP.Addr = "127.0.0.1:9999"
	b.Triggers.Location = "Europe/Oslo"
	b.Locale = "nb"
	assert.Equal(t, []string{"http", "triggers.location"}, restartFields(a, b))
}
