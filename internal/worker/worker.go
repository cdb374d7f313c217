package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bgtask/internal/models"
	"bgtask/internal/scheduler"
	"bgtask/internal/store"
)

// Worker repeatedly acquires a leased task from the scheduler and executes it
// through the registry. Failures go to the retry engine; successes spawn
// their repetition (if any) and are archived. Multiple workers may run
// against the same store with no coordination beyond the lease protocol.
type Worker struct {
	ID string

	// Queue restricts the worker to a single task partition. Empty means all
	// queues.
	Queue string

	// SleepDuration is how long to idle when no task is available.
	SleepDuration time.Duration

	store    store.TaskStore
	sched    *scheduler.Scheduler
	retry    *scheduler.RetryEngine
	repeat   *scheduler.RepeatEngine
	registry *Registry
	clock    scheduler.Clock
	conf     scheduler.Config
}

// New creates a worker with a fresh uuid identity.
func New(st store.TaskStore, clock scheduler.Clock, conf scheduler.Config, sched *scheduler.Scheduler, retry *scheduler.RetryEngine, repeat *scheduler.RepeatEngine, registry *Registry) *Worker {
	return &Worker{
		ID:            uuid.New().String(),
		SleepDuration: 5 * time.Second,
		store:         st,
		sched:         sched,
		retry:         retry,
		repeat:        repeat,
		registry:      registry,
		clock:         clock,
		conf:          conf,
	}
}

// Start is a blocking poll loop. It runs until the context is cancelled and
// returns the context's error.
func (w *Worker) Start(ctx context.Context) error {
	log.Info().Str("worker_id", w.ID).Str("queue", w.Queue).Msg("Worker started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		processed, err := w.ProcessNext(ctx)
		if err != nil {
			log.Error().Err(err).Str("worker_id", w.ID).Msg("Error while processing tasks")
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.SleepDuration):
		}
	}
}

// ProcessNext acquires and runs at most one task. It reports whether a task
// was processed; false with a nil error means nothing was runnable.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	task, err := w.sched.Acquire(ctx, w.Queue, w.ID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	log.Info().
		Str("worker_id", w.ID).
		Int64("task_id", task.ID).
		Str("task_name", task.TaskName).
		Int("attempts", task.Attempts).
		Msg("Executing task")

	// The execution window matches the lease: a task that runs past it has
	// already lost exclusivity.
	runCtx, cancel := context.WithTimeout(ctx, w.conf.MaxRunTime)
	defer cancel()

	if runErr := w.runTask(runCtx, task); runErr != nil {
		log.Warn().
			Err(runErr).
			Str("worker_id", w.ID).
			Int64("task_id", task.ID).
			Msg("Task execution failed")

		if err := w.retry.OnFailure(ctx, task, runErr.Error()); err != nil {
			return true, err
		}
		return true, nil
	}

	return true, w.complete(ctx, task)
}

// runTask resolves and invokes the task body, converting unknown names,
// corrupt params and panics into execution failures.
func (w *Worker) runTask(ctx context.Context, task *models.Task) (err error) {
	fn, ok := w.registry.Resolve(task.TaskName)
	if !ok {
		return fmt.Errorf("no task registered with name %q", task.TaskName)
	}

	args, kwargs, err := task.Params()
	if err != nil {
		return err
	}

	defer func() {
		if rcv := recover(); rcv != nil {
			err = fmt.Errorf("task panicked: %v\n%s", rcv, debug.Stack())
		}
	}()

	return fn(ctx, args, kwargs)
}

// complete spawns the task's repetition (if it is recurring) and archives the
// finished occurrence, removing it from the live set.
func (w *Worker) complete(ctx context.Context, task *models.Task) error {
	if next, err := w.repeat.CreateRepetition(ctx, task); err != nil {
		log.Error().
			Err(err).
			Int64("task_id", task.ID).
			Msg("Could not create task repetition")
	} else if next != nil {
		log.Info().
			Int64("task_id", task.ID).
			Int64("next_task_id", next.ID).
			Time("run_at", next.RunAt).
			Msg("Scheduled next occurrence")
	}

	completed := models.NewCompletedTask(task, w.clock.Now())
	if err := w.store.Archive(ctx, task, completed); err != nil {
		return fmt.Errorf("could not archive completed task %d: %w", task.ID, err)
	}

	log.Info().
		Str("worker_id", w.ID).
		Int64("task_id", task.ID).
		Int64("completed_id", completed.ID).
		Msg("Task completed")
	return nil
}
