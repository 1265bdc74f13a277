package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/corpusbuilder/internal/aggregate"
	"git.home.luguber.info/inful/corpusbuilder/internal/catalog"
	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/gitrepo"
	"git.home.luguber.info/inful/corpusbuilder/internal/patch"
	"git.home.luguber.info/inful/corpusbuilder/internal/retry"
	"git.home.luguber.info/inful/corpusbuilder/internal/sink"
	"git.home.luguber.info/inful/corpusbuilder/internal/workspace"
)

// fakeRunner dispatches on argv[0] so tests can script each build step
// without real tools. The working copy is pre-seeded so clone never touches
// the network.
type fakeRunner struct {
	steps map[string]func(dir, out string) error
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, dir string, _ io.Writer, argv []string) error {
	f.calls = append(f.calls, argv[0])
	step, ok := f.steps[argv[0]]
	if !ok {
		return fmt.Errorf("unexpected command %s", argv[0])
	}
	return step(dir, argv[len(argv)-1])
}

type fixture struct {
	pipe    *Pipeline
	layout  *workspace.Layout
	staging *aggregate.Tree
	sinks   *sink.Registry
	runner  *fakeRunner
	cfg     *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.WorkDir = t.TempDir()
	cfg.Corpus.Cleanup = config.CleanupNone
	cfg.Build.DocsCommand = []string{"docs-build", "{out}"}
	cfg.Build.ReferenceCommand = []string{"ref-build", "{out}"}
	cfg.Build.MinTextBytes = 30
	cfg.Build.RequiredKeywords = []string{"GET", "POST"}

	layout := workspace.NewLayout(cfg.WorkDir)
	if err := layout.Ensure(); err != nil {
		t.Fatal(err)
	}
	staging := aggregate.NewTree(layout.StagingDir())
	runner := &fakeRunner{steps: map[string]func(dir, out string) error{}}

	pipe := New(layout, gitrepo.NewClient(retry.DefaultPolicy()), patch.NewRegistry(), staging, &cfg, nil).
		WithRunner(runner)
	return &fixture{
		pipe:    pipe,
		layout:  layout,
		staging: staging,
		sinks:   sink.NewRegistry(layout.LogsDir()),
		runner:  runner,
		cfg:     &cfg,
	}
}

// seedClone plants a working copy so the clone stage reuses it.
func (f *fixture) seedClone(t *testing.T, project string, extra ...string) {
	t.Helper()
	dir := f.layout.TaskDir(project)
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o750); err != nil {
		t.Fatal(err)
	}
	for _, rel := range extra {
		if err := os.MkdirAll(filepath.Join(dir, rel), 0o750); err != nil {
			t.Fatal(err)
		}
	}
}

func (f *fixture) newSink(t *testing.T, task catalog.Task) *sink.Sink {
	t.Helper()
	s, err := f.sinks.Create(task.Index, task.Project)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func writeDocs(content string) func(dir, out string) error {
	return func(_, out string) error {
		if err := os.MkdirAll(filepath.Join(out, ".doctrees"), 0o750); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(out, "index.txt"), []byte(content), 0o640)
	}
}

func TestRunSucceedsAndPlacesDocs(t *testing.T) {
	f := newFixture(t)
	f.seedClone(t, "nova")
	f.runner.steps["docs-build"] = writeDocs("nova docs")

	task := catalog.Task{Project: "nova", Version: "2025.1", Ref: "stable/2025.1", Label: "2025.1"}
	res := f.pipe.Run(context.Background(), task, f.newSink(t, task))

	if res.Status != StatusSucceeded || res.Err != nil {
		t.Fatalf("status=%s err=%v", res.Status, res.Err)
	}
	if res.Stage != StagePlace {
		t.Fatalf("expected terminal stage place, got %s", res.Stage)
	}
	if res.CloneOutcome != gitrepo.OutcomeReused {
		t.Fatalf("pre-seeded working copy must be reused, got %s", res.CloneOutcome)
	}

	placed := f.staging.Dir("nova", "2025.1")
	if _, err := os.Stat(filepath.Join(placed, "index.txt")); err != nil {
		t.Fatal("docs not placed in staging")
	}
	if _, err := os.Stat(filepath.Join(placed, ".doctrees")); !os.IsNotExist(err) {
		t.Fatal("transient build metadata must be stripped before placement")
	}
}

func TestRunBuildFailure(t *testing.T) {
	f := newFixture(t)
	f.seedClone(t, "nova")
	f.runner.steps["docs-build"] = func(_, _ string) error {
		return fmt.Errorf("sphinx exited 2")
	}

	task := catalog.Task{Project: "nova", Label: "2025.1"}
	res := f.pipe.Run(context.Background(), task, f.newSink(t, task))

	if !res.Failed() {
		t.Fatalf("expected failure, got %s", res.Status)
	}
	var buildErr *BuildError
	if !errors.As(res.Err, &buildErr) {
		t.Fatalf("expected BuildError, got %T", res.Err)
	}
	if res.Stage != StageBuild {
		t.Fatalf("stage reached must be recorded, got %s", res.Stage)
	}
	if pairs, _ := f.staging.Pairs(); len(pairs) != 0 {
		t.Fatalf("failed task must not place anything, found %v", pairs)
	}
}

func TestRunLibraryOnlySkipsPrimaryBuild(t *testing.T) {
	f := newFixture(t)
	f.seedClone(t, "os-brick")

	task := catalog.Task{Project: "os-brick", Label: "2025.1", LibraryOnly: true}
	res := f.pipe.Run(context.Background(), task, f.newSink(t, task))

	if res.Status != StatusSucceeded {
		t.Fatalf("status=%s err=%v", res.Status, res.Err)
	}
	if len(f.runner.calls) != 0 {
		t.Fatalf("no build tool may run for a library-only project, got %v", f.runner.calls)
	}
}

func TestRunReferenceFailureDegradesToPartial(t *testing.T) {
	f := newFixture(t)
	f.seedClone(t, "nova", "api-ref/source")
	f.runner.steps["docs-build"] = writeDocs("nova docs")
	f.runner.steps["ref-build"] = func(_, _ string) error {
		return fmt.Errorf("api-ref build exploded")
	}

	task := catalog.Task{Project: "nova", Label: "2025.1", ReferenceLabel: "2025.1-api-ref", APIRef: true}
	res := f.pipe.Run(context.Background(), task, f.newSink(t, task))

	if res.Status != StatusPartial {
		t.Fatalf("expected partial success, got %s (err=%v)", res.Status, res.Err)
	}
	var refErr *ReferenceBuildError
	if !errors.As(res.ReferenceErr, &refErr) {
		t.Fatalf("expected ReferenceBuildError, got %T", res.ReferenceErr)
	}
	// Primary docs are still placed.
	if _, err := os.Stat(filepath.Join(f.staging.Dir("nova", "2025.1"), "index.txt")); err != nil {
		t.Fatal("primary docs must survive a reference build failure")
	}
}

func TestRunReferenceSkippedWithoutSourceDir(t *testing.T) {
	f := newFixture(t)
	f.seedClone(t, "nova")
	f.runner.steps["docs-build"] = writeDocs("nova docs")

	task := catalog.Task{Project: "nova", Label: "2025.1", ReferenceLabel: "2025.1-api-ref", APIRef: true}
	res := f.pipe.Run(context.Background(), task, f.newSink(t, task))

	if res.Status != StatusSucceeded {
		t.Fatalf("status=%s err=%v", res.Status, res.Err)
	}
	for _, call := range f.runner.calls {
		if call == "ref-build" {
			t.Fatal("reference build must be skipped when the source directory is absent")
		}
	}
}

func TestRunConvertsAndFiltersReferencePages(t *testing.T) {
	f := newFixture(t)
	f.seedClone(t, "nova", "api-ref/source")
	f.runner.steps["docs-build"] = writeDocs("nova docs")
	f.runner.steps["ref-build"] = func(_, out string) error {
		servers := "<html><body><p>GET /v2.1/servers lists servers with details and pagination markers.</p></body></html>"
		if err := os.WriteFile(filepath.Join(out, "servers.html"), []byte(servers), 0o640); err != nil {
			return err
		}
		// Pure navigation, no HTTP verb, below threshold once tags are gone.
		nav := "<html><body><a href=\"x\">next</a></body></html>"
		return os.WriteFile(filepath.Join(out, "nav.html"), []byte(nav), 0o640)
	}

	task := catalog.Task{Project: "nova", Label: "2025.1", ReferenceLabel: "2025.1-api-ref", APIRef: true}
	res := f.pipe.Run(context.Background(), task, f.newSink(t, task))

	if res.Status != StatusSucceeded {
		t.Fatalf("status=%s err=%v refErr=%v", res.Status, res.Err, res.ReferenceErr)
	}

	refDir := f.staging.Dir("nova", "2025.1-api-ref")
	data, err := os.ReadFile(filepath.Join(refDir, "servers.txt"))
	if err != nil {
		t.Fatal("contentful reference page missing from staging")
	}
	if !strings.Contains(string(data), "GET /v2.1/servers") {
		t.Fatalf("converted text lost its content: %q", data)
	}
	if _, err := os.Stat(filepath.Join(refDir, "nav.txt")); !os.IsNotExist(err) {
		t.Fatal("navigation page must be discarded by the content filter")
	}
}

func TestRunConversionWithZeroUsableContentFails(t *testing.T) {
	f := newFixture(t)
	f.seedClone(t, "os-brick", "api-ref/source")
	f.runner.steps["ref-build"] = func(_, out string) error {
		nav := "<html><body><a href=\"x\">next</a></body></html>"
		return os.WriteFile(filepath.Join(out, "nav.html"), []byte(nav), 0o640)
	}

	// Library-only so the reference output is the only possible content.
	task := catalog.Task{Project: "os-brick", Label: "2025.1", ReferenceLabel: "2025.1-api-ref", LibraryOnly: true, APIRef: true}
	res := f.pipe.Run(context.Background(), task, f.newSink(t, task))

	if !res.Failed() {
		t.Fatalf("zero usable content must fail the task, got %s", res.Status)
	}
	var convErr *ConversionError
	if !errors.As(res.Err, &convErr) {
		t.Fatalf("expected ConversionError, got %T", res.Err)
	}
}

func TestRunCleanupPolicies(t *testing.T) {
	t.Run("all removes the working directory", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Corpus.Cleanup = config.CleanupAll
		f.pipe.cleanup = config.CleanupAll
		f.seedClone(t, "nova")
		f.runner.steps["docs-build"] = writeDocs("nova docs")

		task := catalog.Task{Project: "nova", Label: "2025.1"}
		if res := f.pipe.Run(context.Background(), task, f.newSink(t, task)); res.Status != StatusSucceeded {
			t.Fatalf("status=%s err=%v", res.Status, res.Err)
		}
		if _, err := os.Stat(f.layout.TaskDir("nova")); !os.IsNotExist(err) {
			t.Fatal("cleanup=all must remove the task directory")
		}
	})

	t.Run("venv-only keeps the clone", func(t *testing.T) {
		f := newFixture(t)
		f.pipe.cleanup = config.CleanupVenvOnly
		f.seedClone(t, "nova", ".venv")
		f.runner.steps["docs-build"] = writeDocs("nova docs")

		task := catalog.Task{Project: "nova", Label: "2025.1"}
		if res := f.pipe.Run(context.Background(), task, f.newSink(t, task)); res.Status != StatusSucceeded {
			t.Fatalf("status=%s err=%v", res.Status, res.Err)
		}
		dir := f.layout.TaskDir("nova")
		if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
			t.Fatal("venv-only cleanup must keep the clone for reuse")
		}
		for _, scratch := range []string{".venv", buildDirName} {
			if _, err := os.Stat(filepath.Join(dir, scratch)); !os.IsNotExist(err) {
				t.Fatalf("venv-only cleanup must remove %s", scratch)
			}
		}
	})
}

func TestRunAppliesRegisteredPatch(t *testing.T) {
	f := newFixture(t)
	f.seedClone(t, "horizon", "doc/source/contributor/api")
	f.pipe.patches.Register("horizon", patch.RemoveSubtree{Path: "doc/source/contributor/api"})
	f.runner.steps["docs-build"] = func(dir, out string) error {
		if _, err := os.Stat(filepath.Join(dir, "doc/source/contributor/api")); !os.IsNotExist(err) {
			return fmt.Errorf("patch must run before the build")
		}
		return writeDocs("horizon docs")(dir, out)
	}

	task := catalog.Task{Project: "horizon", Label: "2025.1"}
	if res := f.pipe.Run(context.Background(), task, f.newSink(t, task)); res.Status != StatusSucceeded {
		t.Fatalf("status=%s err=%v", res.Status, res.Err)
	}
}
