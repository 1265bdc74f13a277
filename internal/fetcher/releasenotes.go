package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/gitrepo"
	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
	"git.home.luguber.info/inful/corpusbuilder/internal/pipeline"
)

// ReleaseNotes fetches versioned release-information documents and converts
// each minor release's assembly into release-notes/<version>-<minor>.txt.
type ReleaseNotes struct {
	cfg     config.ReleaseNotesConfig
	git     *gitrepo.Client
	runner  pipeline.Runner
	workDir string
	outRoot string
}

// NewReleaseNotes wires a release-notes fetcher writing under
// outRoot/<cfg.Dir>/release-notes.
func NewReleaseNotes(cfg config.ReleaseNotesConfig, git *gitrepo.Client, workDir, outRoot string) *ReleaseNotes {
	return &ReleaseNotes{
		cfg:     cfg,
		git:     git,
		runner:  pipeline.ExecRunner{},
		workDir: workDir,
		outRoot: outRoot,
	}
}

// WithRunner substitutes the external converter runner (fluent helper for tests).
func (f *ReleaseNotes) WithRunner(r pipeline.Runner) *ReleaseNotes {
	f.runner = r
	return f
}

// Fetch clones the repository and converts every release-information assembly
// for the configured version. Returns the number of converted documents.
func (f *ReleaseNotes) Fetch(ctx context.Context) (int, error) {
	if f.cfg.URL == "" {
		return 0, fmt.Errorf("release notes fetcher requires a repository URL")
	}

	dir := filepath.Join(f.workDir, "release-notes")
	if _, err := f.git.Ensure(ctx, gitrepo.CloneSpec{
		URL:    f.cfg.URL,
		Ref:    f.cfg.Ref,
		Dir:    dir,
		CAFile: f.cfg.CAFile,
	}); err != nil {
		return 0, fmt.Errorf("failed to fetch release notes: %w", err)
	}

	// Release directories are named <ver-dashed>-<minor>, each holding
	// assembly_release-information-<ver-dashed>-<minor>.adoc.
	dashed := strings.ReplaceAll(f.cfg.Version, ".", "-")
	pattern := filepath.Join(dir, dashed+"-[0-9]*", "assembly_release-information-"+dashed+"-[0-9]*.adoc")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("bad release notes glob: %w", err)
	}

	minorRe := regexp.MustCompile(regexp.QuoteMeta("assembly_release-information-"+dashed+"-") + `([0-9]+)\.adoc$`)
	outDir := filepath.Join(f.outRoot, f.cfg.Dir, "release-notes")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return 0, err
	}

	converted := 0
	for _, match := range matches {
		m := minorRe.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			slog.Warn("Release notes file does not carry a minor version, skipping",
				logfields.Path(match))
			continue
		}
		minor := m[1]

		out := filepath.Join(outDir, fmt.Sprintf("%s-%s.txt", dashed, minor))
		if err := f.runner.Run(ctx, filepath.Dir(match), os.Stderr, f.convertArgs(match, out)); err != nil {
			return converted, fmt.Errorf("failed to convert release notes %s-%s: %w", dashed, minor, err)
		}
		slog.Info("Converted release notes",
			logfields.Version(f.cfg.Version+"."+minor), logfields.Path(out))
		converted++
	}

	slog.Info("Release notes fetched",
		logfields.Version(f.cfg.Version), slog.Int("documents", converted))
	return converted, nil
}

func (f *ReleaseNotes) convertArgs(in, out string) []string {
	argv := make([]string, 0, len(f.cfg.ConvertCommand))
	for _, a := range f.cfg.ConvertCommand {
		a = strings.ReplaceAll(a, "{in}", in)
		a = strings.ReplaceAll(a, "{out}", out)
		argv = append(argv, a)
	}
	return argv
}
