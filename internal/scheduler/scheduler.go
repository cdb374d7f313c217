package scheduler

import (
	"context"

	"github.com/rs/zerolog/log"

	"bgtask/internal/models"
	"bgtask/internal/store"
)

// Scheduler computes the set of runnable tasks and performs the lease
// acquisition protocol. It holds no mutable state of its own: all
// coordination between concurrent workers happens through the store's atomic
// conditional update, so any number of Scheduler instances may poll the same
// store.
type Scheduler struct {
	store store.TaskStore
	clock Clock
	conf  Config
}

// New creates a scheduler over the given store.
func New(st store.TaskStore, clock Clock, conf Config) *Scheduler {
	return &Scheduler{store: st, clock: clock, conf: conf}
}

// Schedule persists a task built with models.NewTask.
func (s *Scheduler) Schedule(ctx context.Context, task *models.Task) error {
	if err := s.store.Create(ctx, task); err != nil {
		return err
	}
	log.Debug().
		Int64("task_id", task.ID).
		Str("task_name", task.TaskName).
		Time("run_at", task.RunAt).
		Msg("Task scheduled")
	return nil
}

// Unlocked returns the tasks with no lease or a lease older than MaxRunTime.
func (s *Scheduler) Unlocked(ctx context.Context) ([]models.Task, error) {
	return s.store.Unlocked(ctx, s.clock.Now(), s.conf.MaxRunTime)
}

// FindAvailable returns the runnable tasks ordered by priority descending
// then run_at ascending, optionally restricted to a queue. The ordering is a
// consistent snapshot at query time only: a candidate may no longer be
// lockable by the time Lock is attempted.
func (s *Scheduler) FindAvailable(ctx context.Context, queue string) ([]models.Task, error) {
	return s.store.FindAvailable(ctx, s.clock.Now(), s.conf.MaxRunTime, queue)
}

// Lock attempts to acquire a lease on the task for workerID. A nil task with
// a nil error means another worker won the race or the task no longer exists;
// callers should move on to the next candidate.
func (s *Scheduler) Lock(ctx context.Context, task *models.Task, workerID string) (*models.Task, error) {
	return s.store.Lock(ctx, task.ID, workerID, s.clock.Now(), s.conf.MaxRunTime)
}

// Acquire polls the available tasks and returns the first one it manages to
// lock for workerID, or nil when nothing is currently runnable. Lock
// contention on individual candidates is expected and silently skipped.
func (s *Scheduler) Acquire(ctx context.Context, queue, workerID string) (*models.Task, error) {
	candidates, err := s.FindAvailable(ctx, queue)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		locked, err := s.Lock(ctx, &candidates[i], workerID)
		if err != nil {
			return nil, err
		}
		if locked != nil {
			return locked, nil
		}
	}
	return nil, nil
}

// FindTasks returns every live task scheduled with the given name and
// parameters. Hash collisions and historical duplicates are possible, so this
// is zero or more rows.
func (s *Scheduler) FindTasks(ctx context.Context, taskName string, args []any, kwargs map[string]any) ([]models.Task, error) {
	hash, err := paramsHash(taskName, args, kwargs)
	if err != nil {
		return nil, err
	}
	return s.store.FindByHash(ctx, hash)
}

// DropTasks deletes every live task scheduled with the given name and
// parameters, returning the number removed. Dropping an unscheduled task is
// not an error.
func (s *Scheduler) DropTasks(ctx context.Context, taskName string, args []any, kwargs map[string]any) (int64, error) {
	hash, err := paramsHash(taskName, args, kwargs)
	if err != nil {
		return 0, err
	}
	return s.store.DeleteByHash(ctx, hash)
}

// CreatedBy returns the live tasks scheduled by the given creator.
func (s *Scheduler) CreatedBy(ctx context.Context, ref models.CreatorRef) ([]models.Task, error) {
	return s.store.CreatedBy(ctx, ref)
}

func paramsHash(taskName string, args []any, kwargs map[string]any) (string, error) {
	params, err := models.CanonicalParams(args, kwargs)
	if err != nil {
		return "", err
	}
	return models.ComputeHash(taskName, params), nil
}
