// Package pipeline runs one project's documentation build from clone to
// placement in the staging tree. Each task owns a private working directory
// and a private log sink; the stage reached is recorded for diagnostics, and
// failures are captured into the Result rather than propagated.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/corpusbuilder/internal/aggregate"
	"git.home.luguber.info/inful/corpusbuilder/internal/catalog"
	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/convert"
	"git.home.luguber.info/inful/corpusbuilder/internal/gitrepo"
	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
	"git.home.luguber.info/inful/corpusbuilder/internal/metrics"
	"git.home.luguber.info/inful/corpusbuilder/internal/patch"
	"git.home.luguber.info/inful/corpusbuilder/internal/sink"
	"git.home.luguber.info/inful/corpusbuilder/internal/workspace"
)

// Stage names the pipeline's state machine positions.
type Stage string

const (
	StagePending   Stage = "pending"
	StageClone     Stage = "clone"
	StagePatch     Stage = "patch"
	StageBuild     Stage = "build"
	StageReference Stage = "build_reference"
	StageConvert   Stage = "convert_reference"
	StageNormalize Stage = "normalize"
	StagePlace     Stage = "place"
)

// Status is a task's terminal state.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial" // primary docs placed, reference build degraded
	StatusFailed    Status = "failed"
)

// Per-task scratch area inside the working copy. Everything under it is a
// build product, never source.
const buildDirName = "_corpusbuild"

// Result is one task's terminal record, keyed by task identity.
type Result struct {
	Task         catalog.Task
	Status       Status
	Stage        Stage // last stage entered
	Err          error // fatal error, nil unless Status is failed
	ReferenceErr error // non-fatal reference build/conversion degradation
	CloneOutcome gitrepo.Outcome
	Duration     time.Duration
	LogPath      string
}

// Failed reports whether the task ended in the failed state.
func (r Result) Failed() bool { return r.Status == StatusFailed }

// Pipeline executes tasks. One Pipeline serves all tasks of a run; all
// per-task state lives in locals of Run.
type Pipeline struct {
	layout  *workspace.Layout
	git     *gitrepo.Client
	patches *patch.Registry
	staging *aggregate.Tree
	build   config.BuildConfig
	cleanup config.CleanupPolicy
	filter  convert.Filter
	runner  Runner
	metrics metrics.Recorder
}

// New wires a pipeline from the run's configuration.
func New(layout *workspace.Layout, git *gitrepo.Client, patches *patch.Registry, staging *aggregate.Tree, cfg *config.Config, rec metrics.Recorder) *Pipeline {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Pipeline{
		layout:  layout,
		git:     git,
		patches: patches,
		staging: staging,
		build:   cfg.Build,
		cleanup: cfg.Corpus.Cleanup,
		filter: convert.Filter{
			MinBytes:         cfg.Build.MinTextBytes,
			RequiredKeywords: cfg.Build.RequiredKeywords,
		},
		runner:  ExecRunner{},
		metrics: rec,
	}
}

// WithRunner substitutes the external tool runner (fluent helper for tests).
func (p *Pipeline) WithRunner(r Runner) *Pipeline {
	p.runner = r
	return p
}

// Run drives one task through the stage machine. Fatal errors stop the
// pipeline for this task only; the returned Result carries the stage reached.
func (p *Pipeline) Run(ctx context.Context, task catalog.Task, log *sink.Sink) Result {
	start := time.Now()
	res := Result{Task: task, Stage: StagePending, LogPath: log.Path()}
	defer func() {
		res.Duration = time.Since(start)
	}()

	dir := p.layout.TaskDir(task.Project)

	stage := func(s Stage, fn func() error) error {
		res.Stage = s
		log.Printf("--- stage %s", s)
		t0 := time.Now()
		err := fn()
		p.metrics.ObserveStageDuration(string(s), time.Since(t0))
		if err != nil {
			p.metrics.IncStageResult(string(s), metrics.ResultFailed)
			log.Printf("stage %s failed: %v", s, err)
		} else {
			p.metrics.IncStageResult(string(s), metrics.ResultSuccess)
		}
		return err
	}

	if err := stage(StageClone, func() error {
		outcome, err := p.git.Ensure(ctx, gitrepo.CloneSpec{URL: task.URL, Ref: task.Ref, Dir: dir})
		if err != nil {
			return err
		}
		res.CloneOutcome = outcome
		log.Printf("working copy %s (%s)", dir, outcome)
		return nil
	}); err != nil {
		return p.fail(&res, &CloneError{Project: task.Project, Err: err})
	}

	if err := stage(StagePatch, func() error {
		action, ok := p.patches.Lookup(task.Project)
		if !ok {
			log.Printf("no patch registered")
			return nil
		}
		log.Printf("applying patch: %s", action.Name())
		return action.Apply(dir)
	}); err != nil {
		return p.fail(&res, &PatchError{Project: task.Project, Err: err})
	}

	docsOut := filepath.Join(dir, buildDirName, "docs")
	built := false
	if task.LibraryOnly {
		log.Printf("library-only project, skipping the primary build")
		p.metrics.IncStageResult(string(StageBuild), metrics.ResultSkipped)
	} else {
		if err := stage(StageBuild, func() error {
			if err := resetDir(docsOut); err != nil {
				return err
			}
			return p.runner.Run(ctx, dir, log, expandCommand(p.build.DocsCommand, docsOut))
		}); err != nil {
			return p.fail(&res, &BuildError{Project: task.Project, Err: err})
		}
		built = true
	}

	refHTML := filepath.Join(dir, buildDirName, "ref-html")
	refText := filepath.Join(dir, buildDirName, "ref-text")
	refBuilt := false
	if task.APIRef {
		if _, err := os.Stat(filepath.Join(dir, p.build.ReferenceSource)); err == nil {
			if err := stage(StageReference, func() error {
				if err := resetDir(refHTML); err != nil {
					return err
				}
				return p.runner.Run(ctx, dir, log, expandCommand(p.build.ReferenceCommand, refHTML))
			}); err != nil {
				res.ReferenceErr = &ReferenceBuildError{Project: task.Project, Err: err}
				slog.Warn("Reference build degraded to partial success",
					logfields.Project(task.Project), logfields.Error(err))
			} else {
				refBuilt = true
			}
		} else {
			log.Printf("no %s directory, skipping reference build", p.build.ReferenceSource)
			p.metrics.IncStageResult(string(StageReference), metrics.ResultSkipped)
		}
	}

	converted := false
	if refBuilt {
		if err := stage(StageConvert, func() error {
			kept, convErr := p.convertReference(refHTML, refText, log)
			log.Printf("kept %d converted reference pages", kept)
			if kept == 0 {
				if convErr != nil {
					return convErr
				}
				return fmt.Errorf("conversion produced no usable pages")
			}
			if convErr != nil {
				// Some pages failed but usable content remains.
				res.ReferenceErr = &ReferenceBuildError{Project: task.Project, Err: convErr}
			}
			converted = true
			return nil
		}); err != nil {
			return p.fail(&res, &ConversionError{Project: task.Project, Err: err})
		}
	}

	if err := stage(StageNormalize, func() error {
		if built {
			if err := aggregate.StripBuildMetadata(docsOut); err != nil {
				return err
			}
		}
		if converted {
			if err := aggregate.StripBuildMetadata(refText); err != nil {
				return err
			}
		}
		log.Printf("labels: docs=%s reference=%s", task.Label, task.ReferenceLabel)
		return nil
	}); err != nil {
		return p.fail(&res, &PlacementError{Project: task.Project, Err: err})
	}

	if err := stage(StagePlace, func() error {
		if built {
			if err := p.staging.Replace(task.Project, task.Label, docsOut); err != nil {
				return err
			}
		}
		if converted {
			if err := p.staging.Replace(task.Project, task.ReferenceLabel, refText); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return p.fail(&res, &PlacementError{Project: task.Project, Err: err})
	}

	res.Status = StatusSucceeded
	if res.ReferenceErr != nil {
		res.Status = StatusPartial
	}
	p.reclaim(dir, log)
	return res
}

// fail marks the task failed at the stage already recorded in res.
func (p *Pipeline) fail(res *Result, err error) Result {
	res.Status = StatusFailed
	res.Err = err
	slog.Error("Task failed",
		logfields.Project(res.Task.Project),
		logfields.Stage(string(res.Stage)),
		logfields.Error(err))
	// Failed tasks keep their working directory for diagnosis.
	return *res
}

// reclaim applies the cleanup policy after a successful terminal state.
func (p *Pipeline) reclaim(dir string, log *sink.Sink) {
	switch p.cleanup {
	case config.CleanupAll:
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("cleanup: %v", err)
		}
	case config.CleanupVenvOnly:
		for _, scratch := range []string{".venv", "venv", buildDirName} {
			if err := os.RemoveAll(filepath.Join(dir, scratch)); err != nil {
				log.Printf("cleanup %s: %v", scratch, err)
			}
		}
	}
}

// convertReference converts every HTML and Markdown page under src into
// filtered plaintext under dst, mirroring the relative layout. Returns the
// number of pages kept and the first per-page error encountered.
func (p *Pipeline) convertReference(src, dst string, log *sink.Sink) (int, error) {
	kept := 0
	var firstErr error
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(d.Name())
		if d.IsDir() || (ext != ".html" && ext != ".md") {
			return nil
		}

		text, err := convertPage(path, ext)
		if err != nil {
			log.Printf("convert %s: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}

		if !p.filter.Keep(text) {
			log.Printf("discarding %s (below size threshold or pure navigation)", path)
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, strings.TrimSuffix(rel, ext)+".txt")
		if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
			return err
		}
		if err := os.WriteFile(out, []byte(text), 0o640); err != nil {
			return err
		}
		kept++
		return nil
	})
	if walkErr != nil {
		return kept, walkErr
	}
	return kept, firstErr
}

func convertPage(path, ext string) (string, error) {
	if ext == ".md" {
		src, err := os.ReadFile(path) // #nosec G304 - path walked under the task's build dir
		if err != nil {
			return "", err
		}
		return convert.MarkdownToText(src)
	}
	f, err := os.Open(path) // #nosec G304 - path walked under the task's build dir
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()
	return convert.HTMLToText(f)
}

// expandCommand substitutes the build output directory into an argv template.
func expandCommand(argv []string, out string) []string {
	expanded := make([]string, len(argv))
	for i, a := range argv {
		expanded[i] = strings.ReplaceAll(a, "{out}", out)
	}
	return expanded
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o750)
}
