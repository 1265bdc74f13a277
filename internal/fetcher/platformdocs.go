package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/corpusbuilder/internal/aggregate"
	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/gitrepo"
	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
	"git.home.luguber.info/inful/corpusbuilder/internal/pipeline"
)

// Version directories look like 4.16 or 4.16.3; everything else in the
// repository root is tooling or shared content.
var versionDirRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)+$`)

// PlatformDocs fetches a third-party versioned documentation repository,
// converts every version subdirectory concurrently, and aliases "latest" to
// the greatest non-excluded version instead of duplicating content.
type PlatformDocs struct {
	cfg     config.PlatformDocsConfig
	git     *gitrepo.Client
	runner  pipeline.Runner
	workDir string
	outRoot string
}

// NewPlatformDocs wires a platform-docs fetcher writing under outRoot/<cfg.Dir>.
func NewPlatformDocs(cfg config.PlatformDocsConfig, git *gitrepo.Client, workDir, outRoot string) *PlatformDocs {
	return &PlatformDocs{
		cfg:     cfg,
		git:     git,
		runner:  pipeline.ExecRunner{},
		workDir: workDir,
		outRoot: outRoot,
	}
}

// WithRunner substitutes the external converter runner (fluent helper for tests).
func (f *PlatformDocs) WithRunner(r pipeline.Runner) *PlatformDocs {
	f.runner = r
	return f
}

// Fetch clones the repository, converts every version subdirectory (bounded
// by the configured concurrency), and creates the "latest" alias. Returns
// the converted versions.
func (f *PlatformDocs) Fetch(ctx context.Context) ([]string, error) {
	if f.cfg.URL == "" {
		return nil, fmt.Errorf("platform docs fetcher requires a repository URL")
	}

	dir := filepath.Join(f.workDir, "platform-docs")
	if _, err := f.git.Ensure(ctx, gitrepo.CloneSpec{
		URL:    f.cfg.URL,
		Ref:    f.cfg.Ref,
		Dir:    dir,
		CAFile: f.cfg.CAFile,
	}); err != nil {
		return nil, fmt.Errorf("failed to fetch platform docs: %w", err)
	}

	versions, err := listVersionDirs(dir)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("no version directories found in %s", dir)
	}

	outDir := filepath.Join(f.outRoot, f.cfg.Dir)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for _, version := range versions {
		g.Go(func() error {
			out := filepath.Join(outDir, version)
			if err := os.RemoveAll(out); err != nil {
				return err
			}
			if err := f.runner.Run(gctx, dir, os.Stderr, f.convertArgs(filepath.Join(dir, version), out)); err != nil {
				return fmt.Errorf("failed to convert version %s: %w", version, err)
			}
			slog.Info("Converted platform docs version", logfields.Version(version))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := f.aliasLatest(outDir, versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// aliasLatest points "latest" at the resolved version, preferring a symlink
// and falling back to a copy on filesystems without symlink support.
func (f *PlatformDocs) aliasLatest(outDir string, versions []string) error {
	latest, err := ResolveLatest(versions, f.cfg.ExcludedVersions)
	if err != nil {
		return err
	}

	alias := filepath.Join(outDir, "latest")
	if err := os.RemoveAll(alias); err != nil {
		return err
	}
	if err := os.Symlink(latest, alias); err != nil {
		slog.Warn("Symlink alias failed, copying instead", logfields.Error(err))
		if err := aggregate.CopyDir(filepath.Join(outDir, latest), alias); err != nil {
			return fmt.Errorf("failed to alias latest to %s: %w", latest, err)
		}
	}
	slog.Info("Aliased latest platform docs", logfields.Version(latest))
	return nil
}

func listVersionDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && versionDirRe.MatchString(e.Name()) {
			versions = append(versions, e.Name())
		}
	}
	return versions, nil
}

func (f *PlatformDocs) convertArgs(in, out string) []string {
	argv := make([]string, 0, len(f.cfg.ConvertCommand))
	for _, a := range f.cfg.ConvertCommand {
		a = strings.ReplaceAll(a, "{in}", in)
		a = strings.ReplaceAll(a, "{out}", out)
		argv = append(argv, a)
	}
	return argv
}
