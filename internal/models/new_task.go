package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// TaskOptions carries the optional scheduling parameters of NewTask. The zero
// value schedules an immediate, non-repeating task at priority 0 on the
// default queue.
type TaskOptions struct {
	RunAt       time.Time // earliest selection time; defaults to now
	Priority    int
	Queue       string
	VerboseName string
	Creator     *CreatorRef
	Repeat      int64 // seconds between occurrences, 0 means never
	RepeatUntil null.Time
}

// NewTask builds an unpersisted Task from a name and its call parameters.
// The params are canonicalized and hashed so that scheduling and lookup with
// identical inputs deterministically map to the same rows.
func NewTask(taskName string, args []any, kwargs map[string]any, opts TaskOptions) (*Task, error) {
	params, err := CanonicalParams(args, kwargs)
	if err != nil {
		return nil, err
	}

	runAt := opts.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}

	t := &Task{
		TaskName:    taskName,
		TaskParams:  params,
		TaskHash:    ComputeHash(taskName, params),
		Priority:    opts.Priority,
		RunAt:       runAt,
		Repeat:      opts.Repeat,
		RepeatUntil: opts.RepeatUntil,
	}
	if opts.Queue != "" {
		t.Queue = null.StringFrom(opts.Queue)
	}
	if opts.VerboseName != "" {
		t.VerboseName = null.StringFrom(opts.VerboseName)
	}
	if opts.Creator != nil {
		t.CreatorType = null.StringFrom(opts.Creator.Type)
		t.CreatorID = null.IntFrom(opts.Creator.ID)
	}
	return t, nil
}
