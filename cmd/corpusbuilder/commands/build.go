package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/corpusbuilder/internal/aggregate"
	"git.home.luguber.info/inful/corpusbuilder/internal/catalog"
	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/events"
	"git.home.luguber.info/inful/corpusbuilder/internal/gitrepo"
	"git.home.luguber.info/inful/corpusbuilder/internal/history"
	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
	"git.home.luguber.info/inful/corpusbuilder/internal/metrics"
	"git.home.luguber.info/inful/corpusbuilder/internal/patch"
	"git.home.luguber.info/inful/corpusbuilder/internal/pipeline"
	"git.home.luguber.info/inful/corpusbuilder/internal/retry"
	"git.home.luguber.info/inful/corpusbuilder/internal/scheduler"
	"git.home.luguber.info/inful/corpusbuilder/internal/sink"
	"git.home.luguber.info/inful/corpusbuilder/internal/workspace"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Workers  int    `short:"w" help:"Override the configured worker capacity"`
	Ver      string `name:"release" help:"Override the configured version label"`
	FailFast bool   `help:"Stop dequeuing tasks after the first failure"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if b.Workers > 0 {
		cfg.Workers = b.Workers
	}
	if b.Ver != "" {
		cfg.Version = b.Ver
	}
	if b.FailFast {
		cfg.FailFast = true
	}
	return RunBuild(context.Background(), cfg, metrics.NoopRecorder{})
}

// RunBuild executes one full corpus run: clone and build every configured
// project under the worker pool, prune the staging tree, and publish it into
// the output directory. The output tree is untouched when any task fails.
func RunBuild(ctx context.Context, cfg *config.Config, rec metrics.Recorder) error {
	fmt.Println("Starting corpus build")
	started := time.Now()
	runID := uuid.NewString()

	tasks := catalog.Build(cfg)
	if len(tasks) == 0 {
		slog.Warn("No projects configured, nothing to build")
		return nil
	}

	layout := workspace.NewLayout(cfg.WorkDir)
	if err := layout.Ensure(); err != nil {
		return err
	}
	if err := layout.ResetRun(); err != nil {
		return err
	}

	patches, err := patch.FromConfig(cfg.Patches)
	if err != nil {
		return fmt.Errorf("load patches: %w", err)
	}

	git := gitrepo.NewClient(retry.FromConfig(cfg.Build)).WithMetrics(rec)
	staging := aggregate.NewTree(layout.StagingDir())
	pipe := pipeline.New(layout, git, patches, staging, cfg, rec)
	sinks := sink.NewRegistry(layout.LogsDir())
	pool := scheduler.NewPool(cfg.Workers, pipe, sinks, rec).WithFailFast(cfg.FailFast)

	publisher := events.FromConfig(cfg.Events.Enabled, cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
	defer publisher.Close()
	publisher.PublishRunStarted(events.RunStarted{
		RunID:     runID,
		Version:   cfg.Version,
		Workers:   cfg.Workers,
		Tasks:     len(tasks),
		StartedAt: started,
	})

	rr, err := pool.Run(ctx, tasks)
	if err != nil {
		return err
	}
	for _, res := range rr.Results {
		publisher.PublishTaskFinished(taskEvent(runID, res))
	}

	succeeded, partial, failed := rr.Counts()
	finished := time.Now()
	rec.ObserveRunDuration(finished.Sub(started))
	rec.IncRunOutcome(runOutcome(succeeded, partial, failed))

	recordHistory(ctx, cfg, history.Run{
		ID:         runID,
		Version:    cfg.Version,
		Workers:    cfg.Workers,
		StartedAt:  started,
		FinishedAt: finished,
		Succeeded:  succeeded,
		Partial:    partial,
		Failed:     failed,
	}, rr.Results)

	if !rr.OK() {
		publisher.PublishRunCompleted(completedEvent(runID, cfg, succeeded, partial, failed, finished))
		return fmt.Errorf("run failed: %d of %d tasks failed", failed, len(tasks))
	}

	removed, err := staging.Prune(cfg.Corpus.Prune, cfg.Version)
	if err != nil {
		return fmt.Errorf("prune staging tree: %w", err)
	}
	for _, path := range removed {
		slog.Debug("Pruned from staging tree", logfields.Path(path))
	}

	output := aggregate.NewTree(cfg.OutputDir)
	if err := staging.FinalizeInto(output); err != nil {
		return fmt.Errorf("finalize output tree: %w", err)
	}
	publisher.PublishRunCompleted(completedEvent(runID, cfg, succeeded, partial, failed, finished))

	slog.Info("Corpus published",
		logfields.RunID(runID),
		logfields.Path(cfg.OutputDir),
		slog.Int("succeeded", succeeded),
		slog.Int("partial", partial))
	fmt.Printf("Corpus written to %s\n", cfg.OutputDir)
	return nil
}

func taskEvent(runID string, res pipeline.Result) events.TaskFinished {
	e := events.TaskFinished{
		RunID:      runID,
		Project:    res.Task.Project,
		Label:      res.Task.Label,
		Status:     string(res.Status),
		Stage:      string(res.Stage),
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

func completedEvent(runID string, cfg *config.Config, succeeded, partial, failed int, finished time.Time) events.RunCompleted {
	return events.RunCompleted{
		RunID:      runID,
		Version:    cfg.Version,
		Succeeded:  succeeded,
		Partial:    partial,
		Failed:     failed,
		OutputDir:  cfg.OutputDir,
		FinishedAt: finished,
	}
}

func runOutcome(_, partial, failed int) metrics.ResultLabel {
	switch {
	case failed > 0:
		return metrics.ResultFailed
	case partial > 0:
		return metrics.ResultPartial
	default:
		return metrics.ResultSuccess
	}
}

// recordHistory writes the run to the ledger; ledger problems are logged and
// never fail the run.
func recordHistory(ctx context.Context, cfg *config.Config, run history.Run, results []pipeline.Result) {
	if !cfg.History.Enabled {
		return
	}
	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		slog.Warn("Run ledger unavailable", logfields.Error(err))
		return
	}
	defer func() {
		_ = store.Close()
	}()

	records := make([]history.TaskRecord, 0, len(results))
	for _, res := range results {
		rec := history.TaskRecord{
			RunID:      run.ID,
			TaskIndex:  res.Task.Index,
			Project:    res.Task.Project,
			Label:      res.Task.Label,
			Status:     string(res.Status),
			Stage:      string(res.Stage),
			DurationMS: res.Duration.Milliseconds(),
			LogPath:    res.LogPath,
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		records = append(records, rec)
	}
	if err := store.RecordRun(ctx, run, records); err != nil {
		slog.Warn("Failed to record run in ledger", logfields.Error(err))
	}
}
