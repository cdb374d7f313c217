package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"bgtask/internal/models"
	"bgtask/internal/store"
)

// RepeatEngine derives the next occurrence of a recurring task and enqueues
// it. The executor invokes it after a recurring task completes successfully;
// deleting or archiving the finished occurrence is the executor's job, not
// this engine's.
type RepeatEngine struct {
	store store.TaskStore
	clock Clock
}

// NewRepeatEngine creates a repetition engine over the given store.
func NewRepeatEngine(st store.TaskStore, clock Clock) *RepeatEngine {
	return &RepeatEngine{store: st, clock: clock}
}

// CreateRepetition persists the next occurrence of a recurring task and
// returns it. It returns nil when the task does not repeat, or when
// repeat_until is set and has passed. The cutoff is checked against the
// current time only; the new occurrence's own run_at is not compared to
// repeat_until.
func (e *RepeatEngine) CreateRepetition(ctx context.Context, task *models.Task) (*models.Task, error) {
	if !task.IsRepeating() {
		return nil, nil
	}
	if task.RepeatUntil.Valid && !task.RepeatUntil.Time.After(e.clock.Now()) {
		// Repeat chain completed
		return nil, nil
	}

	// Offset from the scheduled time rather than the completion time, so the
	// cadence does not drift with execution delay or retries.
	newRunAt := task.RunAt.Add(time.Duration(task.Repeat) * time.Second)

	// Stored params and hash are carried over byte for byte. Deserializing and
	// re-canonicalizing could alter number representations and change the hash,
	// breaking dedup lookups across the chain.
	next := &models.Task{
		TaskName:    task.TaskName,
		TaskParams:  task.TaskParams,
		TaskHash:    task.TaskHash,
		VerboseName: task.VerboseName,
		Priority:    task.Priority,
		RunAt:       newRunAt,
		Repeat:      task.Repeat,
		RepeatUntil: task.RepeatUntil,
		Queue:       task.Queue,
		CreatorType: task.CreatorType,
		CreatorID:   task.CreatorID,
	}

	if err := e.store.Create(ctx, next); err != nil {
		return nil, err
	}

	log.Debug().
		Int64("task_id", next.ID).
		Str("task_name", next.TaskName).
		Time("run_at", next.RunAt).
		Msg("Created task repetition")
	return next, nil
}
