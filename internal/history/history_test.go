package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func sampleRun(started time.Time) (Run, []TaskRecord) {
	run := Run{
		ID:         uuid.NewString(),
		Version:    "2025.1",
		Workers:    4,
		StartedAt:  started,
		FinishedAt: started.Add(10 * time.Minute),
		Succeeded:  2,
		Failed:     1,
	}
	tasks := []TaskRecord{
		{RunID: run.ID, TaskIndex: 0, Project: "nova", Label: "2025.1", Status: "succeeded", Stage: "place", DurationMS: 60000},
		{RunID: run.ID, TaskIndex: 1, Project: "neutron", Label: "2025.1", Status: "failed", Stage: "build", DurationMS: 30000, Error: "sphinx exited 2"},
		{RunID: run.ID, TaskIndex: 2, Project: "ironic", Label: "latest", Status: "succeeded", Stage: "place", DurationMS: 45000},
	}
	return run, tasks
}

func TestRecordAndReadBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, tasks := sampleRun(time.Unix(1700000000, 0))
	require.NoError(t, store.RecordRun(ctx, run, tasks))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "2025.1", runs[0].Version)
	assert.False(t, runs[0].OK())
	assert.Equal(t, run.StartedAt.Unix(), runs[0].StartedAt.Unix())

	got, err := store.TasksForRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Submission order, regardless of insert order tricks upstream.
	assert.Equal(t, "nova", got[0].Project)
	assert.Equal(t, "neutron", got[1].Project)
	assert.Equal(t, "failed", got[1].Status)
	assert.Equal(t, "build", got[1].Stage)
	assert.Equal(t, "sphinx exited 2", got[1].Error)
}

func TestRecentRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older, olderTasks := sampleRun(time.Unix(1700000000, 0))
	newer, newerTasks := sampleRun(time.Unix(1700100000, 0))
	require.NoError(t, store.RecordRun(ctx, older, olderTasks))
	require.NoError(t, store.RecordRun(ctx, newer, newerTasks))

	runs, err := store.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, newer.ID, runs[0].ID)
}

func TestTasksForUnknownRunIsEmpty(t *testing.T) {
	store := newTestStore(t)
	tasks, err := store.TasksForRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
