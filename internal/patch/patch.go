// Package patch applies per-project fixups to freshly cloned working copies.
// Actions are looked up from a registry keyed by project identifier; a
// project without a registered action is the default, untouched case.
package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
)

// Action mutates a working copy before its build runs.
type Action interface {
	Name() string
	Apply(repoDir string) error
}

// StripExtension drops every line referencing a build-tool extension from a
// configuration file. Some projects list extensions that are absent from the
// build environment and abort the build on import.
type StripExtension struct {
	File      string // config file, relative to the repo root
	Extension string // extension reference to remove
}

func (a StripExtension) Name() string {
	return fmt.Sprintf("strip-extension %s from %s", a.Extension, a.File)
}

func (a StripExtension) Apply(repoDir string) error {
	path, err := insideRepo(repoDir, a.File)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path) // #nosec G304 - constrained to the repo dir above
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", a.File, err)
	}

	lines := strings.Split(string(data), "\n")
	kept := lines[:0]
	removed := 0
	for _, line := range lines {
		if strings.Contains(line, a.Extension) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	if removed == 0 {
		// The reference the patch exists for is gone; treat as already applied.
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", a.File, err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(kept, "\n")), info.Mode().Perm()); err != nil {
		return fmt.Errorf("cannot rewrite %s: %w", a.File, err)
	}
	return nil
}

// RemoveSubtree deletes a directory subtree known to break or loop the build.
// A missing subtree is a no-op.
type RemoveSubtree struct {
	Path string // subtree, relative to the repo root
}

func (a RemoveSubtree) Name() string {
	return fmt.Sprintf("remove-subtree %s", a.Path)
}

func (a RemoveSubtree) Apply(repoDir string) error {
	path, err := insideRepo(repoDir, a.Path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("cannot remove %s: %w", a.Path, err)
	}
	return nil
}

// insideRepo resolves rel under repoDir and rejects paths escaping the repo.
func insideRepo(repoDir, rel string) (string, error) {
	path := filepath.Join(repoDir, filepath.Clean(rel))
	if path != repoDir && !strings.HasPrefix(path, repoDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the repository", rel)
	}
	return path, nil
}

// Registry maps project identifiers to their patch action.
type Registry struct {
	actions map[string]Action
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register binds an action to a project, replacing any previous binding.
func (r *Registry) Register(project string, a Action) {
	r.actions[project] = a
}

// Lookup returns the action registered for a project, if any.
func (r *Registry) Lookup(project string) (Action, bool) {
	a, ok := r.actions[project]
	return a, ok
}

// FromConfig builds a registry from configured patch entries.
func FromConfig(patches []config.PatchConfig) (*Registry, error) {
	r := NewRegistry()
	for _, p := range patches {
		switch p.Action {
		case config.PatchStripExtension:
			r.Register(p.Project, StripExtension{File: p.File, Extension: p.Value})
		case config.PatchRemoveSubtree:
			r.Register(p.Project, RemoveSubtree{Path: p.Path})
		default:
			return nil, fmt.Errorf("patch for %s: unsupported action %s", p.Project, p.Action)
		}
	}
	return r, nil
}
