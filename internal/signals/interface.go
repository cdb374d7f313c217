package signals

import (
	"context"

	"bgtask/internal/models"
)

// TaskFailedEvent is emitted when a task exhausts its attempt budget and is
// terminally archived.
type TaskFailedEvent struct {
	TaskID    int64                 `json:"task_id"`
	Completed *models.CompletedTask `json:"completed_task"`
}

// TaskRescheduledEvent is emitted when a failed task is rescheduled with
// backoff for another attempt.
type TaskRescheduledEvent struct {
	Task *models.Task `json:"task"`
}

// Notifier receives the scheduler's fire-and-forget signals. Implementations
// must not block the caller for long and must swallow their own delivery
// failures: nothing a notifier does may affect the core's state transitions.
type Notifier interface {
	TaskFailed(ctx context.Context, event TaskFailedEvent)
	TaskRescheduled(ctx context.Context, event TaskRescheduledEvent)
}

// Discard is a Notifier that drops every event.
type Discard struct{}

func (Discard) TaskFailed(context.Context, TaskFailedEvent)           {}
func (Discard) TaskRescheduled(context.Context, TaskRescheduledEvent) {}

// Fanout delivers each event to every wrapped notifier in order.
type Fanout []Notifier

func (f Fanout) TaskFailed(ctx context.Context, event TaskFailedEvent) {
	for _, n := range f {
		n.TaskFailed(ctx, event)
	}
}

func (f Fanout) TaskRescheduled(ctx context.Context, event TaskRescheduledEvent) {
	for _, n := range f {
		n.TaskRescheduled(ctx, event)
	}
}
