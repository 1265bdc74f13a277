package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout carves the work root into the areas a corpus run needs: one private
// directory per task, a log directory with one sink per task, and the staging
// tree that later replaces the caller-visible output.
type Layout struct {
	root string
}

// NewLayout returns a layout rooted at the configured work directory.
func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the work root.
func (l *Layout) Root() string { return l.root }

// TasksDir returns the parent of all per-task working copies.
func (l *Layout) TasksDir() string { return filepath.Join(l.root, "tasks") }

// TaskDir returns a project's private working directory. The task owns it
// exclusively while running; the clone inside survives across runs.
func (l *Layout) TaskDir(project string) string {
	return filepath.Join(l.TasksDir(), project)
}

// LogsDir returns the directory holding per-task log sinks for the current run.
func (l *Layout) LogsDir() string { return filepath.Join(l.root, "logs") }

// StagingDir returns the staging tree assembled during the run and swapped
// into the output directory on finalize.
func (l *Layout) StagingDir() string { return filepath.Join(l.root, "staging") }

// Ensure creates the layout directories.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.root, l.TasksDir(), l.LogsDir(), l.StagingDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// ResetRun clears run-scoped state (logs and staging) while leaving per-task
// working copies in place for reuse.
func (l *Layout) ResetRun() error {
	for _, dir := range []string{l.LogsDir(), l.StagingDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to recreate %s: %w", dir, err)
		}
	}
	return nil
}
