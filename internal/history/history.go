// Package history keeps a SQLite ledger of corpus runs: one row per run and
// one row per task, so past failures can be inspected without the original
// logs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one ledger entry for a whole corpus run.
type Run struct {
	ID         string
	Version    string
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Partial    int
	Failed     int
}

// OK reports whether the run finished without failed tasks.
func (r Run) OK() bool { return r.Failed == 0 }

// TaskRecord is one task's ledger entry.
type TaskRecord struct {
	RunID      string
	TaskIndex  int
	Project    string
	Label      string
	Status     string
	Stage      string
	DurationMS int64
	LogPath    string
	Error      string
}

// Store is a SQLite-backed run ledger. Use ":memory:" for tests.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (and if needed initializes) the ledger at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		workers INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		partial INTEGER NOT NULL,
		failed INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tasks (
		run_id TEXT NOT NULL REFERENCES runs(id),
		task_index INTEGER NOT NULL,
		project TEXT NOT NULL,
		label TEXT NOT NULL,
		status TEXT NOT NULL,
		stage TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		log_path TEXT,
		error TEXT,
		PRIMARY KEY (run_id, task_index)
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun inserts a finished run and its task rows in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, tasks []TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, version, workers, started_at, finished_at, succeeded, partial, failed) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Version, run.Workers, run.StartedAt.Unix(), run.FinishedAt.Unix(),
		run.Succeeded, run.Partial, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, task := range tasks {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO tasks (run_id, task_index, project, label, status, stage, duration_ms, log_path, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			run.ID, task.TaskIndex, task.Project, task.Label, task.Status, task.Stage,
			task.DurationMS, task.LogPath, task.Error,
		)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", task.Project, err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, version, workers, started_at, finished_at, succeeded, partial, failed FROM runs ORDER BY started_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Version, &r.Workers, &started, &finished, &r.Succeeded, &r.Partial, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// TasksForRun returns a run's task rows in submission order.
func (s *Store) TasksForRun(ctx context.Context, runID string) ([]TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, task_index, project, label, status, stage, duration_ms, log_path, error FROM tasks WHERE run_id = ? ORDER BY task_index",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var t TaskRecord
		if err := rows.Scan(&t.RunID, &t.TaskIndex, &t.Project, &t.Label, &t.Status, &t.Stage, &t.DurationMS, &t.LogPath, &t.Error); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
