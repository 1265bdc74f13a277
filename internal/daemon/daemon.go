// Package daemon runs corpusbuilder continuously: scheduled corpus refreshes,
// config-file watching with debounced reload, and an HTTP endpoint exposing
// Prometheus metrics and health. Each refresh reuses the same bounded-worker
// run the build command performs.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
	"git.home.luguber.info/inful/corpusbuilder/internal/metrics"
)

// RunFunc performs one full corpus run with the given configuration.
type RunFunc func(ctx context.Context, cfg *config.Config) error

// Daemon owns the scheduler, the config watcher and the HTTP server.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string
	run        RunFunc

	scheduler gocron.Scheduler
	watcher   *ConfigWatcher
	server    *http.Server
	registry  *prom.Registry

	running   atomic.Bool // one refresh at a time
	startedAt time.Time
}

// New creates a daemon. The registry carries the run metrics exposed on
// /metrics; pass the registry the run's PrometheusRecorder was built on.
func New(cfg *config.Config, configPath string, run RunFunc, registry *prom.Registry) (*Daemon, error) {
	if run == nil {
		return nil, fmt.Errorf("daemon requires a run function")
	}
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		run:        run,
		registry:   registry,
	}

	watcher, err := NewConfigWatcher(configPath, d)
	if err != nil {
		return nil, err
	}
	d.watcher = watcher
	return d, nil
}

// Start brings up the scheduler, watcher and HTTP server, then blocks until
// ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.startedAt = time.Now()
	cfg := d.Config()

	interval, err := time.ParseDuration(cfg.Daemon.RefreshInterval)
	if err != nil {
		return fmt.Errorf("bad refresh interval %q: %w", cfg.Daemon.RefreshInterval, err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	d.scheduler = scheduler
	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(d.triggerRun, ctx),
		gocron.WithName("corpus-refresh"),
	); err != nil {
		return fmt.Errorf("failed to schedule corpus refresh: %w", err)
	}
	scheduler.Start()
	slog.Info("Scheduled corpus refresh", slog.Duration("interval", interval))

	if err := d.watcher.Start(ctx); err != nil {
		return err
	}

	d.server = &http.Server{
		Addr:              cfg.Daemon.Listen,
		Handler:           d.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		slog.Info("Daemon HTTP server listening", slog.String("addr", cfg.Daemon.Listen))
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("daemon http server: %w", err)
	case <-ctx.Done():
		return nil
	}
}

// Stop shuts everything down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	slog.Info("Stopping daemon")
	var firstErr error
	if d.scheduler != nil {
		if err := d.scheduler.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Config returns the current configuration snapshot.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig swaps in a freshly loaded configuration; when rebuild-on-change
// is set, a refresh is triggered immediately.
func (d *Daemon) ReloadConfig(ctx context.Context, cfg *config.Config) error {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	slog.Info("Configuration reloaded", logfields.Version(cfg.Version))

	if cfg.Daemon.RebuildOnChange {
		go d.triggerRun(ctx)
	}
	return nil
}

// triggerRun executes one refresh, skipping if one is already in flight.
func (d *Daemon) triggerRun(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		slog.Warn("Skipping corpus refresh: previous refresh still running")
		return
	}
	defer d.running.Store(false)

	cfg := d.Config()
	slog.Info("Starting scheduled corpus refresh", logfields.Version(cfg.Version))
	if err := d.run(ctx, cfg); err != nil {
		slog.Error("Corpus refresh failed", logfields.Error(err))
		return
	}
	slog.Info("Corpus refresh finished")
}

func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","uptime_seconds":%d,"refresh_running":%t}`+"\n",
			int(time.Since(d.startedAt).Seconds()), d.running.Load())
	})
	return mux
}
