package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/fetcher"
	"git.home.luguber.info/inful/corpusbuilder/internal/gitrepo"
	"git.home.luguber.info/inful/corpusbuilder/internal/retry"
	"git.home.luguber.info/inful/corpusbuilder/internal/workspace"
)

// FetchCmd groups the secondary corpus fetchers. Each fetcher clones its
// source repository under the work directory and converts documents straight
// into the output tree, independent of the project build pipeline.
type FetchCmd struct {
	ProductDocs  ProductDocsCmd  `cmd:"" name:"product-docs" help:"Fetch and convert the AsciiDoc product documentation"`
	ReleaseNotes ReleaseNotesCmd `cmd:"" name:"release-notes" help:"Fetch and convert versioned release notes"`
	PlatformDocs PlatformDocsCmd `cmd:"" name:"platform-docs" help:"Fetch platform docs for every version and alias 'latest'"`
}

// fetcherWorkDir keeps fetcher clones out of the per-task area; the clones
// are persistent so repeated fetches reuse them.
func fetcherWorkDir(cfg *config.Config) (string, error) {
	ws := workspace.NewPersistentManager(cfg.WorkDir, "fetchers")
	if err := ws.Create(); err != nil {
		return "", err
	}
	return ws.GetPath(), nil
}

func fetcherClient(cfg *config.Config) *gitrepo.Client {
	return gitrepo.NewClient(retry.FromConfig(cfg.Build))
}

// ProductDocsCmd implements 'fetch product-docs'.
type ProductDocsCmd struct{}

func (p *ProductDocsCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Fetchers.ProductDocs.URL == "" {
		return fmt.Errorf("fetchers.product_docs.url is not configured")
	}
	workDir, err := fetcherWorkDir(cfg)
	if err != nil {
		return err
	}

	f := fetcher.NewProductDocs(cfg.Fetchers.ProductDocs, fetcherClient(cfg), workDir, cfg.OutputDir)
	converted, err := f.Fetch(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Converted %d guides into %s\n", converted, filepath.Join(cfg.OutputDir, cfg.Fetchers.ProductDocs.Dir))
	return nil
}

// ReleaseNotesCmd implements 'fetch release-notes'.
type ReleaseNotesCmd struct{}

func (r *ReleaseNotesCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Fetchers.ReleaseNotes.URL == "" {
		return fmt.Errorf("fetchers.release_notes.url is not configured")
	}
	workDir, err := fetcherWorkDir(cfg)
	if err != nil {
		return err
	}

	f := fetcher.NewReleaseNotes(cfg.Fetchers.ReleaseNotes, fetcherClient(cfg), workDir, cfg.OutputDir)
	converted, err := f.Fetch(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Converted %d release notes into %s\n", converted, filepath.Join(cfg.OutputDir, cfg.Fetchers.ReleaseNotes.Dir))
	return nil
}

// PlatformDocsCmd implements 'fetch platform-docs'.
type PlatformDocsCmd struct{}

func (p *PlatformDocsCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Fetchers.PlatformDocs.URL == "" {
		return fmt.Errorf("fetchers.platform_docs.url is not configured")
	}
	workDir, err := fetcherWorkDir(cfg)
	if err != nil {
		return err
	}

	f := fetcher.NewPlatformDocs(cfg.Fetchers.PlatformDocs, fetcherClient(cfg), workDir, cfg.OutputDir)
	versions, err := f.Fetch(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Converted versions: %s\n", strings.Join(versions, ", "))
	return nil
}
