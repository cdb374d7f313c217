package store

import (
	"context"
	"errors"
	"time"

	"bgtask/internal/models"
)

// ErrNotFound is returned when a task id does not exist in the live set.
var ErrNotFound = errors.New("task not found")

// TaskStore is the persistence abstraction the scheduling engines run
// against. All coordination between workers happens through its atomicity
// guarantees: Lock must be a single atomic conditional write, and Reschedule
// and Archive must commit their transitions all-or-nothing.
//
// Query methods that take now and maxRunTime evaluate the unlocked condition
// at call time: a task is unlocked when locked_by is absent or locked_at is
// older than now - maxRunTime.
type TaskStore interface {
	// Create persists a new task and fills in its id.
	Create(ctx context.Context, task *models.Task) error

	// Get returns the task with the given id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*models.Task, error)

	// Unlocked returns the tasks with no lease or an expired lease.
	Unlocked(ctx context.Context, now time.Time, maxRunTime time.Duration) ([]models.Task, error)

	// FindAvailable returns the runnable tasks: unlocked, due (run_at <= now)
	// and not terminally failed, optionally restricted to a queue. Results are
	// ordered by priority descending then run_at ascending. Each call is a
	// fresh query, not cached state.
	FindAvailable(ctx context.Context, now time.Time, maxRunTime time.Duration, queue string) ([]models.Task, error)

	// Lock attempts to acquire a lease on the task for workerID. The update
	// applies only if the task still satisfies the unlocked condition at the
	// moment of the write. Returns the refreshed task, or (nil, nil) when
	// another worker holds a fresh lease or the task no longer exists.
	Lock(ctx context.Context, id int64, workerID string, now time.Time, maxRunTime time.Duration) (*models.Task, error)

	// FindByHash returns every live task with the given dedup hash. Hash
	// collisions and historical duplicates mean this is zero or more rows.
	FindByHash(ctx context.Context, hash string) ([]models.Task, error)

	// DeleteByHash deletes all live tasks with the given dedup hash and
	// returns the number removed.
	DeleteByHash(ctx context.Context, hash string) (int64, error)

	// CreatedBy returns the live tasks scheduled by the given creator.
	CreatedBy(ctx context.Context, ref models.CreatorRef) ([]models.Task, error)

	// Reschedule persists a retry transition (attempts, last_error, run_at and
	// the cleared lease) as a single atomic write.
	Reschedule(ctx context.Context, task *models.Task) error

	// Archive inserts the completed record and deletes the live task in one
	// atomic transition, filling in the completed record's id.
	Archive(ctx context.Context, task *models.Task, completed *models.CompletedTask) error

	// ListCompleted returns archived records, newest first. A limit of 0
	// means no limit.
	ListCompleted(ctx context.Context, limit int) ([]models.CompletedTask, error)

	// PurgeCompleted deletes archived records whose run_at is older than the
	// cutoff and returns the number removed.
	PurgeCompleted(ctx context.Context, olderThan time.Time) (int64, error)
}
