package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"git.home.luguber.info/inful/corpusbuilder/internal/catalog"
	"git.home.luguber.info/inful/corpusbuilder/internal/pipeline"
	"git.home.luguber.info/inful/corpusbuilder/internal/sink"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedRunner fakes task execution: per-project outcome, optional delay,
// and bookkeeping for the concurrency invariant.
type scriptedRunner struct {
	mu         sync.Mutex
	running    int
	maxRunning int
	started    []string
	failures   map[string]bool
	delay      time.Duration
}

func (r *scriptedRunner) Run(_ context.Context, task catalog.Task, log *sink.Sink) pipeline.Result {
	r.mu.Lock()
	r.running++
	if r.running > r.maxRunning {
		r.maxRunning = r.running
	}
	r.started = append(r.started, task.Project)
	r.mu.Unlock()

	log.Printf("building %s", task.Project)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.running--
	r.mu.Unlock()

	res := pipeline.Result{Task: task, Status: pipeline.StatusSucceeded, Stage: pipeline.StagePlace, LogPath: log.Path()}
	if r.failures[task.Project] {
		res.Status = pipeline.StatusFailed
		res.Stage = pipeline.StageBuild
		res.Err = fmt.Errorf("scripted failure for %s", task.Project)
	}
	return res
}

func makeTasks(names ...string) []catalog.Task {
	tasks := make([]catalog.Task, len(names))
	for i, n := range names {
		tasks[i] = catalog.Task{Index: i, Project: n, Label: "2025.1"}
	}
	return tasks
}

func TestRunningNeverExceedsCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			runner := &scriptedRunner{delay: 5 * time.Millisecond}
			pool := NewPool(capacity, runner, sink.NewRegistry(t.TempDir()), nil)

			tasks := makeTasks("a", "b", "c", "d", "e", "f", "g", "h")
			rr, err := pool.Run(context.Background(), tasks)
			if err != nil {
				t.Fatal(err)
			}
			if !rr.OK() {
				t.Fatal("all tasks should succeed")
			}
			if runner.maxRunning > capacity {
				t.Fatalf("observed %d concurrent tasks with capacity %d", runner.maxRunning, capacity)
			}
		})
	}
}

func TestLaunchFollowsSubmissionOrder(t *testing.T) {
	runner := &scriptedRunner{}
	pool := NewPool(1, runner, sink.NewRegistry(t.TempDir()), nil)

	tasks := makeTasks("nova", "neutron", "glance", "cinder")
	if _, err := pool.Run(context.Background(), tasks); err != nil {
		t.Fatal(err)
	}

	want := []string{"nova", "neutron", "glance", "cinder"}
	for i, name := range want {
		if runner.started[i] != name {
			t.Fatalf("launch order %v, want %v", runner.started, want)
		}
	}
}

func TestAccountingCoversEverySubmittedTask(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]bool{"b": true, "d": true}}
	var replay bytes.Buffer
	pool := NewPool(3, runner, sink.NewRegistry(t.TempDir()), nil).WithReplayTo(&replay)

	tasks := makeTasks("a", "b", "c", "d", "e")
	rr, err := pool.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}

	succeeded, partial, failed := rr.Counts()
	if succeeded+partial+failed != len(tasks) {
		t.Fatalf("accounting hole: %d+%d+%d != %d", succeeded, partial, failed, len(tasks))
	}
	if failed != 2 || succeeded != 3 {
		t.Fatalf("succeeded=%d failed=%d", succeeded, failed)
	}
	// Aggregation is keyed by task identity, not completion order.
	for i, task := range tasks {
		if rr.Results[i].Task.Project != task.Project {
			t.Fatalf("result %d holds %s, want %s", i, rr.Results[i].Task.Project, task.Project)
		}
	}
}

func TestDrainThenFailScenario(t *testing.T) {
	// capacity=2, tasks=[A,B,C], A and B fail, C succeeds: with default
	// options the run still launches and drains C before reporting failure,
	// and the dump carries logs for all three in submission order.
	runner := &scriptedRunner{
		failures: map[string]bool{"A": true, "B": true},
		delay:    5 * time.Millisecond,
	}
	var replay bytes.Buffer
	pool := NewPool(2, runner, sink.NewRegistry(t.TempDir()), nil).WithReplayTo(&replay)

	rr, err := pool.Run(context.Background(), makeTasks("A", "B", "C"))
	if err != nil {
		t.Fatal(err)
	}

	if rr.OK() {
		t.Fatal("run with failed tasks must not be OK")
	}
	if rr.Results[2].Status != pipeline.StatusSucceeded {
		t.Fatalf("C must be drained to completion, got %s", rr.Results[2].Status)
	}

	dump := replay.String()
	posA := strings.Index(dump, "task 00: A")
	posB := strings.Index(dump, "task 01: B")
	posC := strings.Index(dump, "task 02: C")
	if posA < 0 || posB < 0 || posC < 0 {
		t.Fatalf("replay must include every task's log, got:\n%s", dump)
	}
	if !(posA < posB && posB < posC) {
		t.Fatal("replay must follow submission order")
	}
}

func TestFailFastForegoesQueuedTasks(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]bool{"A": true}}
	var replay bytes.Buffer
	pool := NewPool(1, runner, sink.NewRegistry(t.TempDir()), nil).
		WithFailFast(true).
		WithReplayTo(&replay)

	rr, err := pool.Run(context.Background(), makeTasks("A", "B", "C"))
	if err != nil {
		t.Fatal(err)
	}

	if len(runner.started) != 1 {
		t.Fatalf("only A should start, got %v", runner.started)
	}
	for _, i := range []int{1, 2} {
		if !errors.Is(rr.Results[i].Err, ErrNotStarted) {
			t.Fatalf("task %d must be marked not started, got %v", i, rr.Results[i].Err)
		}
		if rr.Results[i].Stage != pipeline.StagePending {
			t.Fatalf("foregone task stage must stay pending, got %s", rr.Results[i].Stage)
		}
	}
	succeeded, _, failed := rr.Counts()
	if succeeded != 0 || failed != 3 {
		t.Fatalf("succeeded=%d failed=%d, want 0/3", succeeded, failed)
	}
}

func TestSuccessfulRunSkipsReplay(t *testing.T) {
	runner := &scriptedRunner{}
	var replay bytes.Buffer
	pool := NewPool(2, runner, sink.NewRegistry(t.TempDir()), nil).WithReplayTo(&replay)

	rr, err := pool.Run(context.Background(), makeTasks("a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if !rr.OK() {
		t.Fatal("expected success")
	}
	if replay.Len() != 0 {
		t.Fatalf("successful runs must not dump logs, got %q", replay.String())
	}
}

func TestZeroCapacityRejected(t *testing.T) {
	pool := NewPool(0, &scriptedRunner{}, sink.NewRegistry(t.TempDir()), nil)
	if _, err := pool.Run(context.Background(), makeTasks("a")); err == nil {
		t.Fatal("capacity 0 must be rejected")
	}
}
