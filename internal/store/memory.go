package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	"bgtask/internal/models"
)

// MemoryStore implements TaskStore with mutex-guarded maps. The single mutex
// gives every transition the atomicity the contract requires, which makes it
// suitable for tests and single-process embedded deployments.
type MemoryStore struct {
	mu              sync.Mutex
	tasks           map[int64]*models.Task
	completed       map[int64]*models.CompletedTask
	nextTaskID      int64
	nextCompletedID int64
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:     make(map[int64]*models.Task),
		completed: make(map[int64]*models.CompletedTask),
	}
}

func (m *MemoryStore) Create(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTaskID++
	task.ID = m.nextTaskID
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func isUnlocked(t *models.Task, now time.Time, maxRunTime time.Duration) bool {
	return !t.IsLocked(now, maxRunTime)
}

func (m *MemoryStore) Unlocked(_ context.Context, now time.Time, maxRunTime time.Duration) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Task
	for _, t := range m.tasks {
		if isUnlocked(t, now, maxRunTime) {
			out = append(out, *t)
		}
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryStore) FindAvailable(_ context.Context, now time.Time, maxRunTime time.Duration, queue string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Task
	for _, t := range m.tasks {
		if !isUnlocked(t, now, maxRunTime) {
			continue
		}
		if t.RunAt.After(now) || t.FailedAt.Valid {
			continue
		}
		if queue != "" && t.Queue.String != queue {
			continue
		}
		out = append(out, *t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].RunAt.Before(out[j].RunAt)
	})
	return out, nil
}

func (m *MemoryStore) Lock(_ context.Context, id int64, workerID string, now time.Time, maxRunTime time.Duration) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || !isUnlocked(t, now, maxRunTime) {
		return nil, nil
	}

	t.LockedBy = null.StringFrom(workerID)
	t.LockedAt = null.TimeFrom(now)
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) FindByHash(_ context.Context, hash string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Task
	for _, t := range m.tasks {
		if t.TaskHash == hash {
			out = append(out, *t)
		}
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryStore) DeleteByHash(_ context.Context, hash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for id, t := range m.tasks {
		if t.TaskHash == hash {
			delete(m.tasks, id)
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CreatedBy(_ context.Context, ref models.CreatorRef) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Task
	for _, t := range m.tasks {
		if t.CreatorType.Valid && t.CreatorType.String == ref.Type &&
			t.CreatorID.Valid && t.CreatorID.Int64 == ref.ID {
			out = append(out, *t)
		}
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryStore) Reschedule(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[task.ID]
	if !ok {
		return ErrNotFound
	}
	t.Attempts = task.Attempts
	t.LastError = task.LastError
	t.RunAt = task.RunAt
	t.FailedAt = task.FailedAt
	t.LockedBy = task.LockedBy
	t.LockedAt = task.LockedAt
	return nil
}

func (m *MemoryStore) Archive(_ context.Context, task *models.Task, completed *models.CompletedTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextCompletedID++
	completed.ID = m.nextCompletedID
	cp := *completed
	m.completed[completed.ID] = &cp
	delete(m.tasks, task.ID)
	return nil
}

func (m *MemoryStore) ListCompleted(_ context.Context, limit int) ([]models.CompletedTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.CompletedTask
	for _, c := range m.completed {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PurgeCompleted(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for id, c := range m.completed {
		if c.RunAt.Before(olderThan) {
			delete(m.completed, id)
			count++
		}
	}
	return count, nil
}

func sortByID(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
}
