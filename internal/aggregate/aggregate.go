// Package aggregate owns the corpus output trees. A tree is a directory keyed
// project/label/artifact-subtree; writing a (project, label) pair is always a
// full replace so stale files from a previous run never leak into a fresh
// build. Pruning and finalizing run single-threaded after all build tasks
// have joined.
package aggregate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
)

// Transient build metadata stripped from artifacts before placement.
var transientEntries = map[string]bool{
	".doctrees":  true,
	".buildinfo": true,
	"_sources":   true,
	"objects.inv": true,
}

// Tree is one aggregate directory (either the staging tree assembled during a
// run or the caller-visible output tree).
type Tree struct {
	root string
}

// NewTree returns a tree rooted at dir.
func NewTree(dir string) *Tree {
	return &Tree{root: dir}
}

// Root returns the tree's root directory.
func (t *Tree) Root() string { return t.root }

// Dir returns the artifact directory for a (project, label) pair.
func (t *Tree) Dir(project, label string) string {
	return filepath.Join(t.root, project, label)
}

// Replace installs src as the (project, label) subtree, removing whatever was
// there before. Remove-then-copy, never a merge.
func (t *Tree) Replace(project, label, src string) error {
	dst := t.Dir(project, label)
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dst, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	if err := CopyDir(src, dst); err != nil {
		return fmt.Errorf("failed to place %s/%s: %w", project, label, err)
	}
	return nil
}

// Prune deletes every listed relative path from the tree if present; a
// missing path is a no-op. "{version}" in a path is substituted with version.
// Returns the paths actually removed.
func (t *Tree) Prune(paths []string, version string) ([]string, error) {
	var removed []string
	for _, raw := range paths {
		rel := strings.ReplaceAll(raw, "{version}", version)
		abs, err := insideTree(t.root, rel)
		if err != nil {
			return removed, err
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(abs); err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", rel, err)
		}
		slog.Debug("Pruned path from aggregate", logfields.Path(rel))
		removed = append(removed, rel)
	}
	return removed, nil
}

// FinalizeInto replaces, in the output tree, exactly the (project, label)
// pairs present in this tree. Subtrees for versions and labels not rebuilt in
// the current run are left untouched.
func (t *Tree) FinalizeInto(output *Tree) error {
	pairs, err := t.Pairs()
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		if err := output.Replace(pair.Project, pair.Label, t.Dir(pair.Project, pair.Label)); err != nil {
			return err
		}
		slog.Info("Published corpus subtree",
			logfields.Project(pair.Project), logfields.Label(pair.Label))
	}
	return nil
}

// Pair identifies one project/label subtree.
type Pair struct {
	Project string
	Label   string
}

// Pairs lists every (project, label) subtree in the tree, project-sorted.
func (t *Tree) Pairs() ([]Pair, error) {
	projects, err := os.ReadDir(t.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tree %s: %w", t.root, err)
	}

	var pairs []Pair
	for _, p := range projects {
		if !p.IsDir() {
			continue
		}
		labels, err := os.ReadDir(filepath.Join(t.root, p.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read project %s: %w", p.Name(), err)
		}
		for _, l := range labels {
			if !l.IsDir() {
				continue
			}
			pairs = append(pairs, Pair{Project: p.Name(), Label: l.Name()})
		}
	}
	return pairs, nil
}

// StripBuildMetadata removes transient build tool artifacts (doctrees, build
// info, reST sources, inventory files) from an artifact directory.
func StripBuildMetadata(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir || !transientEntries[d.Name()] {
			return nil
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to strip %s: %w", path, err)
		}
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
}

// CopyDir recursively copies a directory tree. Symlinks are recreated as
// symlinks so "latest" aliases survive placement.
func CopyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return err
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return err
			}
		case entry.IsDir():
			if err := CopyDir(srcPath, dstPath); err != nil {
				return err
			}
		default:
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src) // #nosec G304 - paths derive from the tree layout
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	dstFile, err := os.Create(dst) // #nosec G304 - paths derive from the tree layout
	if err != nil {
		return err
	}
	defer func() {
		_ = dstFile.Close()
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, srcInfo.Mode().Perm())
}

// insideTree resolves rel under root and rejects paths escaping the tree.
func insideTree(root, rel string) (string, error) {
	path := filepath.Join(root, filepath.Clean(rel))
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("prune path %s escapes the tree", rel)
	}
	return path, nil
}
