// Package catalog turns the configured project list into the ordered set of
// immutable task descriptors a run executes. All per-task decisions that can
// be made before any work starts (clone ref, output labels, patch lookup,
// build flags) are made here, once.
package catalog

import (
	"git.home.luguber.info/inful/corpusbuilder/internal/config"
)

// Task describes one project's documentation build. Immutable once
// constructed; one instance per project per run.
type Task struct {
	Index   int    // submission order, 0-based
	Project string // project identifier
	URL     string // clone URL
	Version string // requested version label
	Ref     string // git branch derived from Version

	// Label is the output directory name under the project in the aggregate:
	// the requested version, or the literal "latest" for override projects.
	Label string
	// ReferenceLabel is Label plus the reference suffix, distinguishing the
	// reference build's output from the primary docs.
	ReferenceLabel string

	LibraryOnly bool // skip the primary docs build
	APIRef      bool // run the reference build when the source dir exists
}

// BranchRef derives the clone ref from a requested version. The literal
// "master" is an unversioned development ref and bypasses the branch prefix;
// every other version maps to its stable branch.
func BranchRef(version string) string {
	if version == "master" {
		return "master"
	}
	return "stable/" + version
}

// ResolveLabel returns the output label for a project: "latest" when the
// project is in the override table, the requested version otherwise.
func ResolveLabel(project, version string, overrides []string) string {
	for _, p := range overrides {
		if p == project {
			return "latest"
		}
	}
	return version
}

// Build constructs the run's task list in configuration order.
func Build(cfg *config.Config) []Task {
	tasks := make([]Task, 0, len(cfg.Projects))
	for i, p := range cfg.Projects {
		label := ResolveLabel(p.Name, cfg.Version, cfg.Corpus.LatestOverrides)
		tasks = append(tasks, Task{
			Index:          i,
			Project:        p.Name,
			URL:            cfg.ProjectURL(p),
			Version:        cfg.Version,
			Ref:            BranchRef(cfg.Version),
			Label:          label,
			ReferenceLabel: label + cfg.Corpus.ReferenceSuffix,
			LibraryOnly:    p.LibraryOnly,
			APIRef:         cfg.Build.APIRef,
		})
	}
	return tasks
}
