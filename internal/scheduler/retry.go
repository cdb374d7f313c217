package scheduler

import (
	"context"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"

	"bgtask/internal/models"
	"bgtask/internal/signals"
	"bgtask/internal/store"
)

// RetryEngine decides, on task failure, between retry-with-backoff and
// terminal archival, and performs the corresponding state transition. Every
// failure is recoverable until the attempt budget is exhausted; there is no
// distinct permanent-failure signal from the executor.
type RetryEngine struct {
	store    store.TaskStore
	clock    Clock
	conf     Config
	notifier signals.Notifier
}

// NewRetryEngine creates a retry engine. The notifier receives task_failed
// and task_rescheduled events; delivery is fire-and-forget and never affects
// the state transition.
func NewRetryEngine(st store.TaskStore, clock Clock, conf Config, notifier signals.Notifier) *RetryEngine {
	return &RetryEngine{store: st, clock: clock, conf: conf, notifier: notifier}
}

// Backoff returns the retry delay after the given number of failed attempts:
// attempts^4 + 5 seconds, so retries rapidly space out (6s, 21s, 86s, 261s at
// attempts 1 through 4).
func Backoff(attempts int) time.Duration {
	n := int64(attempts)
	return time.Duration(n*n*n*n+5) * time.Second
}

// OnFailure records the failure and either reschedules the task with backoff
// or, once the attempt budget is exhausted, archives it terminally. The
// transition is persisted as a single atomic write; if persistence fails no
// partial state is committed and no notification fires.
func (e *RetryEngine) OnFailure(ctx context.Context, task *models.Task, errorText string) error {
	now := e.clock.Now()

	task.LastError = null.StringFrom(errorText)
	task.Attempts++

	if task.Attempts >= e.conf.MaxAttempts {
		task.FailedAt = null.TimeFrom(now)

		log.Warn().
			Int64("task_id", task.ID).
			Str("task_name", task.TaskName).
			Int("attempts", task.Attempts).
			Msg("Marking task as failed")

		completed := models.NewCompletedTask(task, now)
		if err := e.store.Archive(ctx, task, completed); err != nil {
			return err
		}

		e.notifier.TaskFailed(ctx, signals.TaskFailedEvent{TaskID: task.ID, Completed: completed})
		return nil
	}

	backoff := Backoff(task.Attempts)
	task.RunAt = now.Add(backoff)
	// Release the lease early so another worker can pick the task up as soon
	// as run_at arrives, instead of waiting out the lease window.
	task.LockedBy = null.String{}
	task.LockedAt = null.Time{}

	log.Warn().
		Int64("task_id", task.ID).
		Str("task_name", task.TaskName).
		Int("attempts", task.Attempts).
		Dur("backoff", backoff).
		Time("run_at", task.RunAt).
		Msg("Rescheduling task")

	if err := e.store.Reschedule(ctx, task); err != nil {
		return err
	}

	e.notifier.TaskRescheduled(ctx, signals.TaskRescheduledEvent{Task: task})
	return nil
}
