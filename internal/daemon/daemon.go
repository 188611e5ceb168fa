// Package daemon wires the bedshift runtime: trigger facility, state machine,
// journal, event fan-out, HTTP API and configuration watcher.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/api"
	"git.home.luguber.info/inful/bedshift/internal/config"
	"git.home.luguber.info/inful/bedshift/internal/events"
	ferrors "git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/journal"
	"git.home.luguber.info/inful/bedshift/internal/logfields"
	"git.home.luguber.info/inful/bedshift/internal/metrics"
	"git.home.luguber.info/inful/bedshift/internal/notify"
	"git.home.luguber.info/inful/bedshift/internal/publish"
	"git.home.luguber.info/inful/bedshift/internal/retry"
	"git.home.luguber.info/inful/bedshift/internal/scheduler"
	"git.home.luguber.info/inful/bedshift/internal/state"
	"git.home.luguber.info/inful/bedshift/internal/trigger"
	"git.home.luguber.info/inful/bedshift/internal/version"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// HeartbeatJob is the gocron job name of the pending-registration retry.
const HeartbeatJob = "bedshift-retry-pending"

var (
	// ErrNotStopped is returned by Start on a daemon that is already running.
	ErrNotStopped = ferrors.DaemonError("daemon is not in stopped state").Build()
	// ErrListen is returned when the HTTP address cannot be bound.
	ErrListen = ferrors.DaemonError("failed to bind HTTP address").Build()
	// ErrRestartRequired rejects a reload that cannot be applied live.
	ErrRestartRequired = ferrors.ConfigError("configuration change requires a daemon restart").Build()
)

type retrier interface {
	RetryPending(ctx context.Context) (bool, error)
}

// PublisherFactory connects the external event publisher.
type PublisherFactory func(ctx context.Context, cfg config.NATSConfig) (EventPublisher, error)

// Option configures a Daemon.
type Option func(*Daemon)

// WithClock replaces the wall clock. Used by tests.
func WithClock(c clockwork.Clock) Option {
	return func(d *Daemon) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithPublisherFactory replaces the NATS connection.
func WithPublisherFactory(f PublisherFactory) Option {
	return func(d *Daemon) {
		if f != nil {
			d.connect = f
		}
	}
}

// Daemon is the long-running bedshift process.
type Daemon struct {
	mu         sync.Mutex
	cfg        *config.Config
	configPath string
	status     atomic.Value // Status
	startTime  time.Time

	clock     clockwork.Clock
	scheduler *Scheduler
	facility  *trigger.GocronFacility
	store     state.Store
	journal   journal.Store
	bus       *events.Bus
	notifier  *notify.LogNotifier
	registry  *prom.Registry
	machine   *adherence.Machine
	retrier   retrier
	retry     atomic.Pointer[retry.Tracker]
	connect   PublisherFactory
	publisher EventPublisher
	api       *api.Server
	watcher   *ConfigWatcher

	listener  net.Listener
	cancel    context.CancelFunc
	consumers []<-chan struct{}
	serveDone chan struct{}
}

// New builds a daemon from cfg. configPath, when set, is watched for changes.
func New(cfg *config.Config, configPath string, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		clock:      clockwork.NewRealClock(),
		connect: func(ctx context.Context, c config.NATSConfig) (EventPublisher, error) {
			p, err := publish.Connect(ctx, c)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
	d.status.Store(StatusStopped)
	for _, opt := range opts {
		opt(d)
	}

	loc, err := cfg.LoadLocation()
	if err != nil {
		return nil, err
	}
	d.clock = inLocation(d.clock, loc)

	if d.scheduler, err = NewScheduler(d.clock, loc); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create scheduler").Build()
	}
	if d.store, err = state.NewSQLiteStore(cfg.Storage.StateDB); err != nil {
		return nil, err
	}
	if d.journal, err = journal.NewSQLiteStore(cfg.Storage.JournalDB); err != nil {
		_ = d.store.Close()
		return nil, err
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		d.registry = metrics.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(d.registry)
	}

	d.facility = trigger.NewGocronFacility(d.scheduler.Gocron(), d.clock, cfg.ExactAllowed())
	d.notifier = notify.NewLogNotifier(cfg.Locale, slog.Default())
	d.bus = events.NewBus()
	d.machine = adherence.New(d.store, scheduler.New(d.facility).WithRecorder(recorder), d.clock,
		adherence.WithNotifier(d.notifier),
		adherence.WithEventSink(events.Sink[adherence.Event]{Bus: d.bus}),
		adherence.WithRecorder(recorder))
	d.retrier = d.machine
	d.retry.Store(retry.NewTracker(retry.FromConfig(cfg.Retry)))

	d.facility.SetHandler(d.machine.Handler())
	d.facility.SetSurface(func(r trigger.Registration) {
		slog.Debug("Trigger registered with alarm-clock delivery",
			logfields.TriggerID(r.ID), logfields.CycleID(r.CycleID), logfields.Instant(r.At))
	})

	apiOpts := []api.Option{
		api.WithPermissions(d.facility),
		api.WithHistory(d.journal),
		api.WithEventBus(d.bus),
		api.WithNotices(d.notifier.Recent),
		api.WithNow(d.clock.Now),
	}
	if d.registry != nil {
		apiOpts = append(apiOpts, api.WithMetricsHandler(metrics.HTTPHandler(d.registry)))
	}
	d.api = api.NewServer(cfg.HTTP.Addr, foreground{Machine: d.machine, rearm: d.rearmRetries}, apiOpts...)

	if configPath != "" {
		if d.watcher, err = NewConfigWatcher(configPath, d); err != nil {
			slog.Warn("Config watcher unavailable", logfields.Error(err))
		}
	}

	return d, nil
}

// Start brings every component up and returns once the daemon is serving.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.GetStatus() != StatusStopped {
		return ErrNotStopped.WithContext("status", string(d.GetStatus()))
	}
	d.status.Store(StatusStarting)
	d.startTime = d.clock.Now()
	slog.Info("Starting bedshift daemon", slog.String("version", version.Version))

	l, err := net.Listen("tcp", d.cfg.HTTP.Addr)
	if err != nil {
		d.status.Store(StatusError)
		return ErrListen.WithContext("addr", d.cfg.HTTP.Addr).Wrap(err)
	}
	d.listener = l

	// Components live until Stop, not until the caller's context ends.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	if d.cfg.NATS.Enabled && d.publisher == nil {
		p, err := d.connect(runCtx, d.cfg.NATS)
		if err != nil {
			slog.Warn("Adherence event publishing disabled", logfields.Error(err))
		} else {
			d.publisher = p
		}
	}
	d.startConsumers(runCtx)

	d.scheduler.Start(runCtx)

	// Boot is a foreground event: registrations did not survive the restart.
	if _, err := d.machine.Resume(runCtx); err != nil {
		slog.Warn("Initial resume failed", logfields.Error(err))
	}

	if _, err := d.scheduler.ScheduleEvery(HeartbeatJob, d.cfg.ResumeInterval(), func() { d.heartbeat(runCtx) }); err != nil {
		slog.Error("Failed to schedule registration retries", logfields.Error(err))
	}

	d.serveDone = make(chan struct{})
	go func() {
		defer close(d.serveDone)
		if err := d.api.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", logfields.Error(err))
		}
	}()

	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			slog.Error("Failed to start config watcher", logfields.Error(err))
		} else {
			slog.Info("Config watcher started")
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("Bedshift daemon started",
		slog.String("addr", l.Addr().String()),
		slog.String("state_db", d.cfg.Storage.StateDB),
		slog.String("journal_db", d.cfg.Storage.JournalDB),
		slog.Bool("exact_allowed", d.facility.CanScheduleExact()),
		slog.Bool("metrics", d.registry != nil),
		slog.Bool("publishing", d.publisher != nil))
	return nil
}

// Stop gracefully shuts down the daemon. Stores are closed, so a stopped
// daemon is not started again; build a new one instead.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.GetStatus() {
	case StatusStopped, StatusStopping:
		return nil
	}
	d.status.Store(StatusStopping)
	slog.Info("Stopping bedshift daemon")

	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil {
			slog.Error("Failed to stop config watcher", logfields.Error(err))
		}
	}

	if err := d.api.Shutdown(ctx); err != nil {
		slog.Error("Failed to stop HTTP server", logfields.Error(err))
	}
	if d.serveDone != nil {
		<-d.serveDone
	}

	if d.cancel != nil {
		d.cancel()
	}
	if err := d.scheduler.Stop(ctx); err != nil {
		slog.Error("Failed to stop scheduler", logfields.Error(err))
	}

	d.bus.Close()
	for _, done := range d.consumers {
		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn("Event consumers did not drain before shutdown deadline")
		}
	}
	d.consumers = nil

	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			slog.Error("Failed to close publisher", logfields.Error(err))
		}
		d.publisher = nil
	}
	if err := d.journal.Close(); err != nil {
		slog.Error("Failed to close journal", logfields.Error(err))
	}
	if err := d.store.Close(); err != nil {
		slog.Error("Failed to close state store", logfields.Error(err))
	}

	d.status.Store(StatusStopped)
	slog.Info("Bedshift daemon stopped", slog.Duration("uptime", d.clock.Since(d.startTime)))
	return nil
}

// Run starts the daemon, blocks until ctx is done and then stops it within
// the configured shutdown timeout.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.GetConfig().ShutdownTimeout())
	defer cancel()
	return d.Stop(stopCtx)
}

// GetStatus returns the current daemon status
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// Addr is the bound HTTP address, or the configured one before Start.
func (d *Daemon) Addr() string {
	if d.listener != nil {
		return d.listener.Addr().String()
	}
	return d.cfg.HTTP.Addr
}

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// ReloadConfig applies the live-reloadable parts of newConfig and treats the
// change as a foreground event. Storage, address, zone and publishing changes
// need a restart and are rejected.
func (d *Daemon) ReloadConfig(ctx context.Context, newConfig *config.Config) error {
	d.mu.Lock()
	current := d.cfg
	if diff := restartFields(current, newConfig); len(diff) > 0 {
		d.mu.Unlock()
		return ErrRestartRequired.WithContext("fields", diff)
	}
	d.cfg = newConfig
	d.mu.Unlock()

	if newConfig.ExactAllowed() != d.facility.CanScheduleExact() {
		d.facility.SetExactAllowed(newConfig.ExactAllowed())
	}
	d.retry.Store(retry.NewTracker(retry.FromConfig(newConfig.Retry)))
	if newConfig.Locale != current.Locale {
		slog.Warn("Locale change takes effect after restart", slog.String("locale", newConfig.Locale))
	}

	if _, err := d.machine.Resume(ctx); err != nil {
		return fmt.Errorf("resume after reload: %w", err)
	}
	slog.Info("Configuration applied", slog.Bool("exact_allowed", newConfig.ExactAllowed()))
	return nil
}

func restartFields(a, b *config.Config) []string {
	var out []string
	if a.Version != b.Version {
		out = append(out, "version")
	}
	if a.Storage != b.Storage {
		out = append(out, "storage")
	}
	if a.HTTP != b.HTTP {
		out = append(out, "http")
	}
	if a.Triggers.Location != b.Triggers.Location {
		out = append(out, "triggers.location")
	}
	if a.NATS != b.NATS {
		out = append(out, "nats")
	}
	if a.Metrics != b.Metrics {
		out = append(out, "metrics")
	}
	return out
}
