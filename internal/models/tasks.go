package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// Repeat intervals are encoded as a number of seconds. The repetition
// implementation is based on this encoding, but any positive value works.
const (
	Never       int64 = 0
	Hourly      int64 = 3600
	Daily       int64 = 24 * Hourly
	Weekly      int64 = 7 * Daily
	Every2Weeks int64 = 2 * Weekly
	Every4Weeks int64 = 4 * Weekly
)

// Task is a model representing the `task.pending` table: one row per pending
// unit of deferred work. Rows are mutated in place by locking, attempt
// increments and backoff rescheduling, and deleted when archived into a
// CompletedTask.
type Task struct {
	ID          int64       `db:"id"`
	TaskName    string      `db:"task_name"`    // name of the function to run, opaque to the scheduler
	TaskParams  string      `db:"task_params"`  // canonical JSON form of (args, kwargs)
	TaskHash    string      `db:"task_hash"`    // SHA-1 of task_name + task_params, for dedup lookup
	VerboseName null.String `db:"verbose_name"` // optional human label
	Priority    int         `db:"priority"`     // higher runs first
	RunAt       time.Time   `db:"run_at"`       // earliest time the task may be selected
	Repeat      int64       `db:"repeat"`       // seconds until the next occurrence, 0 means never
	RepeatUntil null.Time   `db:"repeat_until"` // cutoff after which no further occurrences are made
	Queue       null.String `db:"queue"`        // optional partition workers may restrict to
	Attempts    int         `db:"attempts"`     // failed execution tries so far
	FailedAt    null.Time   `db:"failed_at"`    // set immediately before terminal archival
	LastError   null.String `db:"last_error"`   // most recent captured failure text
	LockedBy    null.String `db:"locked_by"`    // worker identity holding the current lease
	LockedAt    null.Time   `db:"locked_at"`    // lease acquisition time
	CreatorType null.String `db:"creator_type"` // opaque creator entity type
	CreatorID   null.Int    `db:"creator_id"`   // opaque creator entity id
}

// IsRepeating returns true if the task spawns further occurrences after a
// successful run.
func (t *Task) IsRepeating() bool {
	return t.Repeat > Never
}

// IsLocked reports whether the task holds a lease acquired within the last
// maxRunTime. A task whose lease is older is logically unlocked.
func (t *Task) IsLocked(now time.Time, maxRunTime time.Duration) bool {
	if !t.LockedBy.Valid {
		return false
	}
	return t.LockedAt.Valid && !t.LockedAt.Time.Before(now.Add(-maxRunTime))
}

// Creator returns the opaque creator reference, or nil when the task was
// scheduled without one.
func (t *Task) Creator() *CreatorRef {
	if !t.CreatorType.Valid || !t.CreatorID.Valid {
		return nil
	}
	return &CreatorRef{Type: t.CreatorType.String, ID: t.CreatorID.Int64}
}

func (t *Task) String() string {
	if t.VerboseName.Valid {
		return t.VerboseName.String
	}
	return t.TaskName
}

// CompletedTask is a model representing the `task.completed` table: an
// immutable archival copy of a Task at the moment it permanently stopped
// being live. Created once, never mutated.
type CompletedTask struct {
	ID          int64       `db:"id"`
	TaskName    string      `db:"task_name"`
	TaskParams  string      `db:"task_params"`
	TaskHash    string      `db:"task_hash"`
	VerboseName null.String `db:"verbose_name"`
	Priority    int         `db:"priority"`
	RunAt       time.Time   `db:"run_at"` // stamped to the archival time
	Repeat      int64       `db:"repeat"`
	RepeatUntil null.Time   `db:"repeat_until"`
	Queue       null.String `db:"queue"`
	Attempts    int         `db:"attempts"`
	FailedAt    null.Time   `db:"failed_at"`
	LastError   null.String `db:"last_error"`
	LockedBy    null.String `db:"locked_by"`
	LockedAt    null.Time   `db:"locked_at"`
	CreatorType null.String `db:"creator_type"`
	CreatorID   null.Int    `db:"creator_id"`
}

// NewCompletedTask snapshots a task into its archival form. The run_at field
// carries the archival time rather than the scheduled time.
func NewCompletedTask(t *Task, now time.Time) *CompletedTask {
	return &CompletedTask{
		TaskName:    t.TaskName,
		TaskParams:  t.TaskParams,
		TaskHash:    t.TaskHash,
		VerboseName: t.VerboseName,
		Priority:    t.Priority,
		RunAt:       now,
		Repeat:      t.Repeat,
		RepeatUntil: t.RepeatUntil,
		Queue:       t.Queue,
		Attempts:    t.Attempts,
		FailedAt:    t.FailedAt,
		LastError:   t.LastError,
		LockedBy:    t.LockedBy,
		LockedAt:    t.LockedAt,
		CreatorType: t.CreatorType,
		CreatorID:   t.CreatorID,
	}
}
