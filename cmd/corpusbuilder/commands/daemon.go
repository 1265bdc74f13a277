package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/daemon"
	"git.home.luguber.info/inful/corpusbuilder/internal/metrics"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return RunDaemon(cfg, root.Config)
}

// RunDaemon runs until SIGINT/SIGTERM, refreshing the corpus on the
// configured interval and reloading the configuration on file change.
func RunDaemon(cfg *config.Config, configPath string) error {
	slog.Info("Starting daemon mode", slog.String("listen", cfg.Daemon.Listen))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)
	run := func(ctx context.Context, cfg *config.Config) error {
		return RunBuild(ctx, cfg, recorder)
	}

	d, err := daemon.New(cfg, configPath, run, registry)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}
