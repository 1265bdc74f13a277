// Package sink captures each build task's output into an isolated log file
// and replays every captured log in submission order when a run fails, so
// diagnosis never requires re-running the build.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink is one task's private log destination. Exactly one task writes to it;
// the registry replays it after all tasks have terminated.
type Sink struct {
	index int
	name  string
	path  string

	mu   sync.Mutex
	file *os.File
}

// Index returns the task's submission index.
func (s *Sink) Index() int { return s.index }

// Name returns the task name the sink was created for.
func (s *Sink) Name() string { return s.name }

// Path returns the log file location.
func (s *Sink) Path() string { return s.path }

// Write appends to the log file, satisfying io.Writer so the sink can be
// handed to exec.Cmd as Stdout and Stderr.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return 0, fmt.Errorf("log sink %s is closed", s.path)
	}
	return s.file.Write(p)
}

// Printf writes a formatted line to the sink.
func (s *Sink) Printf(format string, args ...any) {
	fmt.Fprintf(s, format+"\n", args...)
}

// Close flushes and closes the underlying file. Safe to call twice.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Registry owns all sinks of a run, in submission order.
type Registry struct {
	dir   string
	sinks []*Sink
}

// NewRegistry creates a registry writing logs under dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// Create opens a sink for the task at the given submission index. Sinks must
// be created in submission order; replay order follows creation order.
func (r *Registry) Create(index int, name string) (*Sink, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("%02d-%s.log", index, name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) // #nosec G304 - path derives from workspace layout
	if err != nil {
		return nil, fmt.Errorf("failed to create log sink for %s: %w", name, err)
	}
	s := &Sink{index: index, name: name, path: path, file: f}
	r.sinks = append(r.sinks, s)
	return s, nil
}

// Sinks returns all sinks in submission order.
func (r *Registry) Sinks() []*Sink { return r.sinks }

// CloseAll closes every sink, keeping the files for replay.
func (r *Registry) CloseAll() {
	for _, s := range r.sinks {
		_ = s.Close()
	}
}

// ReplayAll dumps every captured log to w in submission order, each preceded
// by a banner naming the task. Sinks must be closed first.
func (r *Registry) ReplayAll(w io.Writer) error {
	for _, s := range r.sinks {
		fmt.Fprintf(w, "===== task %02d: %s (%s) =====\n", s.index, s.name, s.path)
		f, err := os.Open(s.path) // #nosec G304 - path derives from workspace layout
		if err != nil {
			fmt.Fprintf(w, "(log unavailable: %v)\n", err)
			continue
		}
		if _, err := io.Copy(w, f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to replay log %s: %w", s.path, err)
		}
		_ = f.Close()
		fmt.Fprintln(w)
	}
	return nil
}
