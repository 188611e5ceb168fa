package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/bedshift/internal/config"
	"git.home.luguber.info/inful/bedshift/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	NoWatch bool `name:"no-watch" help:"Do not reload the configuration file on change"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}

	logger := NewLogger(os.Stderr, cfg.Logging, root.Verbose)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings() {
		slog.Warn("Configuration normalized", slog.String("note", w))
	}

	watchPath := root.Config
	if d.NoWatch {
		watchPath = ""
	}
	return RunDaemon(cfg, watchPath)
}

// RunDaemon runs the daemon until SIGINT or SIGTERM.
func RunDaemon(cfg *config.Config, configPath string) error {
	slog.Info("Starting daemon mode", slog.String("config", configPath))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, configPath)
	if err != nil {
		return err
	}
	if err := d.Run(ctx); err != nil {
		return err
	}

	slog.Info("Daemon stopped successfully")
	return nil
}
