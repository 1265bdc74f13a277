// Package fetcher populates auxiliary corpora in the shared aggregate tree:
// AsciiDoc product documentation, release notes, and a third-party versioned
// docs repository with "latest" alias resolution. Fetchers run as separate
// invocations outside the build worker pool, each writing its own namespace.
package fetcher

import (
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/gitrepo"
	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
	"git.home.luguber.info/inful/corpusbuilder/internal/pipeline"
	"git.home.luguber.info/inful/corpusbuilder/internal/versionutil"
)

// docinfo is the metadata sibling of a guide's master.adoc. The file carries
// multiple top-level elements, so parsing wraps it in a synthetic root.
type docinfo struct {
	Title         string `xml:"title"`
	ProductNumber string `xml:"productnumber"`
}

func readDocinfo(path string) (*docinfo, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path walked under the fetcher clone
	if err != nil {
		return nil, err
	}
	wrapped := "<docinfo>" + string(data) + "</docinfo>"
	var info docinfo
	if err := xml.Unmarshal([]byte(wrapped), &info); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &info, nil
}

// normalizeTitle derives a directory name from a guide title.
func normalizeTitle(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "_")
}

// ProductDocs fetches an AsciiDoc product documentation repository and
// converts every guide matching the requested product version.
type ProductDocs struct {
	cfg     config.ProductDocsConfig
	git     *gitrepo.Client
	runner  pipeline.Runner
	workDir string
	outRoot string
}

// NewProductDocs wires a product-docs fetcher writing under
// outRoot/<cfg.Dir>/<cfg.Version>.
func NewProductDocs(cfg config.ProductDocsConfig, git *gitrepo.Client, workDir, outRoot string) *ProductDocs {
	return &ProductDocs{
		cfg:     cfg,
		git:     git,
		runner:  pipeline.ExecRunner{},
		workDir: workDir,
		outRoot: outRoot,
	}
}

// WithRunner substitutes the external converter runner (fluent helper for tests).
func (f *ProductDocs) WithRunner(r pipeline.Runner) *ProductDocs {
	f.runner = r
	return f
}

// Fetch clones the repository and converts every qualifying guide. A guide
// qualifies when its docinfo product number matches the configured version
// and its title is not excluded. Returns the number of converted guides.
func (f *ProductDocs) Fetch(ctx context.Context) (int, error) {
	if f.cfg.URL == "" {
		return 0, fmt.Errorf("product docs fetcher requires a repository URL")
	}

	dir := filepath.Join(f.workDir, "product-docs")
	if _, err := f.git.Ensure(ctx, gitrepo.CloneSpec{
		URL:    f.cfg.URL,
		Ref:    f.cfg.Ref,
		Dir:    dir,
		CAFile: f.cfg.CAFile,
	}); err != nil {
		return 0, fmt.Errorf("failed to fetch product docs: %w", err)
	}

	excluded := make(map[string]bool, len(f.cfg.ExcludeTitles))
	for _, t := range f.cfg.ExcludeTitles {
		excluded[t] = true
	}

	converted := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "master.adoc" {
			return nil
		}

		guideDir := filepath.Dir(path)
		info, err := readDocinfo(filepath.Join(guideDir, "docinfo.xml"))
		if err != nil {
			slog.Warn("Skipping guide without readable docinfo",
				logfields.Path(guideDir), logfields.Error(err))
			return nil
		}
		// Product number comparison is numeric: "18.0" matches "18".
		if !versionutil.Equal(info.ProductNumber, f.cfg.Version) {
			return nil
		}

		title := normalizeTitle(info.Title)
		if title == "" {
			// A blank title would collapse the output path onto the version
			// directory itself.
			slog.Warn("Skipping guide with empty docinfo title", logfields.Path(guideDir))
			return nil
		}
		if excluded[title] {
			slog.Debug("Guide title excluded", slog.String("title", title))
			return nil
		}
		if remapped, ok := f.cfg.RemapTitles[title]; ok {
			title = remapped
		}

		out := filepath.Join(f.outRoot, f.cfg.Dir, f.cfg.Version, title, "master.txt")
		if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
			return err
		}
		if err := f.runner.Run(ctx, guideDir, os.Stderr, f.convertArgs(path, out)); err != nil {
			return fmt.Errorf("failed to convert guide %s: %w", title, err)
		}
		slog.Info("Converted guide", slog.String("title", title), logfields.Path(out))
		converted++
		return nil
	})
	if err != nil {
		return converted, err
	}

	slog.Info("Product docs fetched",
		logfields.Version(f.cfg.Version), slog.Int("guides", converted))
	return converted, nil
}

func (f *ProductDocs) convertArgs(in, out string) []string {
	argv := make([]string, 0, len(f.cfg.ConvertCommand)+2)
	for _, a := range f.cfg.ConvertCommand {
		a = strings.ReplaceAll(a, "{in}", in)
		a = strings.ReplaceAll(a, "{out}", out)
		argv = append(argv, a)
	}
	if f.cfg.AttributesFile != "" {
		argv = append(argv, "--attributes-file", f.cfg.AttributesFile)
	}
	return argv
}
