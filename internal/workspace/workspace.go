package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
)

// Manager owns a fixed scratch directory under the work root. The directory
// survives across runs so fetcher clones are reused.
type Manager struct {
	workDir string
}

// NewPersistentManager creates a manager for baseDir/subdirName. An empty
// subdirName defaults to "working".
func NewPersistentManager(baseDir, subdirName string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if subdirName == "" {
		subdirName = "working"
	}
	return &Manager{workDir: filepath.Join(baseDir, subdirName)}
}

// Create ensures the workspace directory exists.
func (m *Manager) Create() error {
	if err := os.MkdirAll(m.workDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Info("Using persistent workspace", logfields.Path(m.workDir))
	return nil
}

// GetPath returns the path to the workspace directory.
func (m *Manager) GetPath() string {
	return m.workDir
}
