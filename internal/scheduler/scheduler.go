// Package scheduler bounds how many task pipelines run concurrently. The
// control loop is single-threaded: it launches tasks in submission order
// until the pool is at capacity, then blocks on the completion channel until
// any running task terminates (wait-for-any, the loop's only blocking point),
// reclaims the slot and continues dequeuing. Results are keyed by task
// identity because completion order is arbitrary.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/corpusbuilder/internal/catalog"
	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
	"git.home.luguber.info/inful/corpusbuilder/internal/metrics"
	"git.home.luguber.info/inful/corpusbuilder/internal/pipeline"
	"git.home.luguber.info/inful/corpusbuilder/internal/sink"
)

// ErrNotStarted marks tasks foregone when fail-fast stops dequeuing after a
// peer failure. They count as failed for accounting.
var ErrNotStarted = errors.New("task not started: a peer task failed")

// TaskRunner executes one task to a terminal state. Implemented by
// pipeline.Pipeline; an interface so scheduler tests can script outcomes.
type TaskRunner interface {
	Run(ctx context.Context, task catalog.Task, log *sink.Sink) pipeline.Result
}

// Pool is a bounded worker pool over task pipelines.
type Pool struct {
	capacity int
	runner   TaskRunner
	sinks    *sink.Registry
	metrics  metrics.Recorder
	failFast bool
	replayTo io.Writer
}

// NewPool creates a pool with the given capacity.
func NewPool(capacity int, runner TaskRunner, sinks *sink.Registry, rec metrics.Recorder) *Pool {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Pool{
		capacity: capacity,
		runner:   runner,
		sinks:    sinks,
		metrics:  rec,
		replayTo: os.Stderr,
	}
}

// WithFailFast stops dequeuing new tasks after the first failure; running
// peers still drain to completion (fluent helper).
func (p *Pool) WithFailFast(failFast bool) *Pool {
	p.failFast = failFast
	return p
}

// WithReplayTo redirects the failure log dump (fluent helper for tests).
func (p *Pool) WithReplayTo(w io.Writer) *Pool {
	p.replayTo = w
	return p
}

// RunResult aggregates all task results of one run, indexed by submission
// order.
type RunResult struct {
	Results []pipeline.Result
}

// OK reports whether every task succeeded (partial successes count as OK;
// the reference degradation is recorded per task).
func (r *RunResult) OK() bool {
	for _, res := range r.Results {
		if res.Failed() {
			return false
		}
	}
	return true
}

// Counts returns the number of succeeded, partial and failed tasks.
// succeeded+partial+failed always equals the number of submitted tasks.
func (r *RunResult) Counts() (succeeded, partial, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case pipeline.StatusSucceeded:
			succeeded++
		case pipeline.StatusPartial:
			partial++
		default:
			failed++
		}
	}
	return succeeded, partial, failed
}

// Failed returns the failed results in submission order.
func (r *RunResult) Failed() []pipeline.Result {
	var failed []pipeline.Result
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Run executes the task queue under the capacity bound and returns when every
// started task has terminated. A task failure never cancels running peers and
// by default does not stop dequeuing either; with fail-fast set, queued tasks
// are foregone and the pool drains. Either way the run exits non-zero when
// any task failed, with all log sinks replayed in submission order.
func (p *Pool) Run(ctx context.Context, tasks []catalog.Task) (*RunResult, error) {
	if p.capacity < 1 {
		return nil, fmt.Errorf("worker capacity must be at least 1, got %d", p.capacity)
	}

	results := make([]pipeline.Result, len(tasks))
	done := make(chan pipeline.Result, len(tasks))
	running := 0
	next := 0
	failed := false

	p.metrics.SetWorkerCapacity(p.capacity)
	p.metrics.SetRunningTasks(0)
	slog.Info("Starting run", logfields.Workers(p.capacity), slog.Int("tasks", len(tasks)))

	collect := func() {
		// Wait-for-any: the only place the control loop blocks.
		res := <-done
		running--
		p.metrics.SetRunningTasks(running)
		results[res.Task.Index] = res
		p.recordResult(res)
		if res.Failed() {
			failed = true
		}
	}

	for next < len(tasks) {
		if failed && p.failFast {
			break
		}
		if running == p.capacity {
			collect()
			continue
		}

		task := tasks[next]
		next++
		logSink, err := p.sinks.Create(task.Index, task.Project)
		if err != nil {
			results[task.Index] = pipeline.Result{
				Task:   task,
				Status: pipeline.StatusFailed,
				Stage:  pipeline.StagePending,
				Err:    err,
			}
			p.metrics.IncTaskResult(metrics.ResultFailed)
			failed = true
			continue
		}

		slog.Info("Launching task",
			logfields.Task(task.Index),
			logfields.Project(task.Project),
			logfields.Label(task.Label))
		running++
		p.metrics.SetRunningTasks(running)
		go func() {
			done <- p.runner.Run(ctx, task, logSink)
		}()
	}

	// Drain: started tasks always finish, whatever their peers did.
	for running > 0 {
		collect()
	}

	for i := next; i < len(tasks); i++ {
		results[i] = pipeline.Result{
			Task:   tasks[i],
			Status: pipeline.StatusFailed,
			Stage:  pipeline.StagePending,
			Err:    ErrNotStarted,
		}
		p.metrics.IncTaskResult(metrics.ResultFailed)
		slog.Warn("Task foregone after failure", logfields.Project(tasks[i].Project))
	}

	rr := &RunResult{Results: results}
	p.sinks.CloseAll()

	if !rr.OK() {
		fmt.Fprintln(p.replayTo, "run failed; replaying all task logs in submission order")
		if err := p.sinks.ReplayAll(p.replayTo); err != nil {
			slog.Error("Log replay failed", logfields.Error(err))
		}
	}

	succeeded, partial, failedCount := rr.Counts()
	slog.Info("Run finished",
		slog.Int("succeeded", succeeded),
		slog.Int("partial", partial),
		slog.Int("failed", failedCount))
	return rr, nil
}

func (p *Pool) recordResult(res pipeline.Result) {
	switch res.Status {
	case pipeline.StatusSucceeded:
		p.metrics.IncTaskResult(metrics.ResultSuccess)
	case pipeline.StatusPartial:
		p.metrics.IncTaskResult(metrics.ResultPartial)
	default:
		p.metrics.IncTaskResult(metrics.ResultFailed)
	}
	p.metrics.ObserveTaskDuration(res.Task.Project, res.Duration, !res.Failed())

	attrs := []any{
		logfields.Task(res.Task.Index),
		logfields.Project(res.Task.Project),
		logfields.Stage(string(res.Stage)),
		logfields.DurationMS(float64(res.Duration.Milliseconds())),
	}
	if res.Failed() {
		slog.Error("Task failed", append(attrs, logfields.Error(res.Err))...)
	} else if res.Status == pipeline.StatusPartial {
		slog.Warn("Task partially succeeded", append(attrs, logfields.Error(res.ReferenceErr))...)
	} else {
		slog.Info("Task succeeded", attrs...)
	}
}
