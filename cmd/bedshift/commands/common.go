package commands

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bedshift/internal/api"
	"git.home.luguber.info/inful/bedshift/internal/config"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"bedshift.yaml" env:"BEDSHIFT_CONFIG"`
	Addr    string           `help:"Daemon API address (defaults to http.addr from the configuration)" env:"BEDSHIFT_ADDR"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	JSON    bool             `name:"json" help:"Print results as JSON"`
	Timeout time.Duration    `help:"Timeout for API requests" default:"10s"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Daemon  DaemonCmd  `cmd:"" help:"Run the scheduler daemon"`
	Setup   SetupCmd   `cmd:"" help:"Answer the survey and start a plan"`
	Status  StatusCmd  `cmd:"" help:"Show the current plan"`
	Confirm ConfirmCmd `cmd:"" help:"Confirm that you went to bed"`
	Skip    SkipCmd    `cmd:"" help:"Skip tonight"`
	Resume  ResumeCmd  `cmd:"" help:"Re-check trigger registrations"`
	Exact   ExactCmd   `cmd:"" help:"Grant or revoke exact trigger delivery"`
	History HistoryCmd `cmd:"" help:"Show adherence history"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// NewLogger builds the daemon logger from the logging section. --verbose
// always wins over the configured level.
func NewLogger(w io.Writer, lc config.LoggingConfig, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(lc.Level)}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if lc.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// client resolves the daemon address: --addr, then the configuration file,
// then the default loopback address.
func (c *CLI) client() *api.Client {
	if c.Addr != "" {
		return api.NewClient(c.Addr)
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		slog.Debug("Using default daemon address", "config", c.Config, "error", err)
		return api.NewClient(config.DefaultHTTPAddr)
	}
	return api.NewClient(cfg.HTTP.Addr)
}
