package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgtask/internal/models"
	"bgtask/internal/store"
)

var t0 = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

const maxRunTime = time.Hour

func mustTask(t *testing.T, name string, opts models.TaskOptions) *models.Task {
	t.Helper()
	task, err := models.NewTask(name, nil, nil, opts)
	require.NoError(t, err)
	return task
}

func createTask(t *testing.T, st store.TaskStore, name string, opts models.TaskOptions) *models.Task {
	t.Helper()
	task := mustTask(t, name, opts)
	require.NoError(t, st.Create(context.Background(), task))
	return task
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	st := store.NewMemoryStore()
	task := createTask(t, st, "a", models.TaskOptions{RunAt: t0})
	require.NotZero(t, task.ID)

	got, err := st.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskHash, got.TaskHash)

	_, err = st.Get(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStore_FindAvailableOrdering(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	t1 := t0.Add(-2 * time.Hour)
	t2 := t0.Add(-time.Hour)

	highLate := createTask(t, st, "high-late", models.TaskOptions{Priority: 5, RunAt: t2})
	low := createTask(t, st, "low", models.TaskOptions{Priority: 1, RunAt: t1})
	highEarly := createTask(t, st, "high-early", models.TaskOptions{Priority: 5, RunAt: t1})

	available, err := st.FindAvailable(ctx, t0, maxRunTime, "")
	require.NoError(t, err)
	require.Len(t, available, 3)

	// priority desc, then run_at asc
	assert.Equal(t, highEarly.ID, available[0].ID)
	assert.Equal(t, highLate.ID, available[1].ID)
	assert.Equal(t, low.ID, available[2].ID)
}

func TestMemoryStore_FindAvailableFilters(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	due := createTask(t, st, "due", models.TaskOptions{RunAt: t0.Add(-time.Minute)})
	createTask(t, st, "future", models.TaskOptions{RunAt: t0.Add(time.Minute)})
	queued := createTask(t, st, "queued", models.TaskOptions{RunAt: t0.Add(-time.Minute), Queue: "io"})

	available, err := st.FindAvailable(ctx, t0, maxRunTime, "")
	require.NoError(t, err)
	require.Len(t, available, 2)

	available, err = st.FindAvailable(ctx, t0, maxRunTime, "io")
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, queued.ID, available[0].ID)

	// a locked task is not available
	locked, err := st.Lock(ctx, due.ID, "w1", t0, maxRunTime)
	require.NoError(t, err)
	require.NotNil(t, locked)

	available, err = st.FindAvailable(ctx, t0, maxRunTime, "")
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, queued.ID, available[0].ID)
}

func TestMemoryStore_LockExclusivity(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	task := createTask(t, st, "contested", models.TaskOptions{RunAt: t0.Add(-time.Minute)})

	winner, err := st.Lock(ctx, task.ID, "w1", t0, maxRunTime)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "w1", winner.LockedBy.String)
	assert.Equal(t, t0, winner.LockedAt.Time)

	loser, err := st.Lock(ctx, task.ID, "w2", t0.Add(time.Second), maxRunTime)
	require.NoError(t, err)
	assert.Nil(t, loser)

	// locking a missing task is contention, not an error
	gone, err := st.Lock(ctx, 999, "w1", t0, maxRunTime)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryStore_LockRace(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	task := createTask(t, st, "raced", models.TaskOptions{RunAt: t0.Add(-time.Minute)})

	workers := []string{"w1", "w2", "w3", "w4", "w5", "w6", "w7", "w8"}
	results := make([]*models.Task, len(workers))
	errs := make([]error, len(workers))

	var wg sync.WaitGroup
	for i, id := range workers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = st.Lock(ctx, task.ID, id, t0, maxRunTime)
		}(i, id)
	}
	wg.Wait()

	var wins int
	for i := range workers {
		require.NoError(t, errs[i])
		if results[i] != nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestMemoryStore_LeaseExpiry(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	task := createTask(t, st, "leased", models.TaskOptions{RunAt: t0.Add(-time.Minute)})

	_, err := st.Lock(ctx, task.ID, "w1", t0, maxRunTime)
	require.NoError(t, err)

	// within the lease window the task is locked
	unlocked, err := st.Unlocked(ctx, t0.Add(time.Second), maxRunTime)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	// past the window the lease is abandoned
	unlocked, err = st.Unlocked(ctx, t0.Add(maxRunTime+time.Second), maxRunTime)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, task.ID, unlocked[0].ID)

	// and a second worker can steal the lease
	stolen, err := st.Lock(ctx, task.ID, "w2", t0.Add(maxRunTime+time.Second), maxRunTime)
	require.NoError(t, err)
	require.NotNil(t, stolen)
	assert.Equal(t, "w2", stolen.LockedBy.String)
}

func TestMemoryStore_FindAndDeleteByHash(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	first := createTask(t, st, "dup", models.TaskOptions{RunAt: t0})
	second := createTask(t, st, "dup", models.TaskOptions{RunAt: t0.Add(time.Hour)})
	createTask(t, st, "other", models.TaskOptions{RunAt: t0})

	require.Equal(t, first.TaskHash, second.TaskHash)

	found, err := st.FindByHash(ctx, first.TaskHash)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	count, err := st.DeleteByHash(ctx, first.TaskHash)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// idempotent unschedule
	count, err = st.DeleteByHash(ctx, first.TaskHash)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStore_CreatedBy(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	ref := models.CreatorRef{Type: "user", ID: 7}
	mine := createTask(t, st, "mine", models.TaskOptions{RunAt: t0, Creator: &ref})
	createTask(t, st, "theirs", models.TaskOptions{RunAt: t0, Creator: &models.CreatorRef{Type: "user", ID: 8}})
	createTask(t, st, "anonymous", models.TaskOptions{RunAt: t0})

	tasks, err := st.CreatedBy(ctx, ref)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, mine.ID, tasks[0].ID)
}

func TestMemoryStore_Reschedule(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	task := createTask(t, st, "retry-me", models.TaskOptions{RunAt: t0})

	_, err := st.Lock(ctx, task.ID, "w1", t0, maxRunTime)
	require.NoError(t, err)

	task.Attempts = 1
	task.LastError = null.StringFrom("boom")
	task.RunAt = t0.Add(6 * time.Second)
	task.LockedBy = null.String{}
	task.LockedAt = null.Time{}
	require.NoError(t, st.Reschedule(ctx, task))

	got, err := st.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "boom", got.LastError.String)
	assert.Equal(t, t0.Add(6*time.Second), got.RunAt)
	assert.False(t, got.LockedBy.Valid)
	assert.False(t, got.LockedAt.Valid)

	missing := mustTask(t, "missing", models.TaskOptions{RunAt: t0})
	missing.ID = 999
	assert.ErrorIs(t, st.Reschedule(ctx, missing), store.ErrNotFound)
}

func TestMemoryStore_Archive(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	task := createTask(t, st, "done", models.TaskOptions{RunAt: t0})

	completed := models.NewCompletedTask(task, t0.Add(time.Minute))
	require.NoError(t, st.Archive(ctx, task, completed))
	require.NotZero(t, completed.ID)

	_, err := st.Get(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	archived, err := st.ListCompleted(ctx, 0)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, task.TaskHash, archived[0].TaskHash)
}

func TestMemoryStore_PurgeCompleted(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	old := createTask(t, st, "old", models.TaskOptions{RunAt: t0})
	recent := createTask(t, st, "recent", models.TaskOptions{RunAt: t0})
	require.NoError(t, st.Archive(ctx, old, models.NewCompletedTask(old, t0.Add(-48*time.Hour))))
	require.NoError(t, st.Archive(ctx, recent, models.NewCompletedTask(recent, t0)))

	count, err := st.PurgeCompleted(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	remaining, err := st.ListCompleted(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].TaskName)
}
