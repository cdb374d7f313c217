package signals_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgtask/internal/models"
	"bgtask/internal/signals"
)

func TestHub_CallbacksFire(t *testing.T) {
	hub := signals.NewHub()
	ctx := context.Background()

	var failed []signals.TaskFailedEvent
	var rescheduled []signals.TaskRescheduledEvent

	hub.OnTaskFailed(func(_ context.Context, event signals.TaskFailedEvent) {
		failed = append(failed, event)
	})
	hub.OnTaskRescheduled(func(_ context.Context, event signals.TaskRescheduledEvent) {
		rescheduled = append(rescheduled, event)
	})

	hub.TaskFailed(ctx, signals.TaskFailedEvent{TaskID: 1, Completed: &models.CompletedTask{TaskName: "a"}})
	hub.TaskRescheduled(ctx, signals.TaskRescheduledEvent{Task: &models.Task{ID: 2, TaskName: "b"}})
	hub.TaskRescheduled(ctx, signals.TaskRescheduledEvent{Task: &models.Task{ID: 3, TaskName: "b"}})

	require.Len(t, failed, 1)
	assert.EqualValues(t, 1, failed[0].TaskID)
	require.Len(t, rescheduled, 2)
	assert.EqualValues(t, 2, rescheduled[0].Task.ID)
}

func TestHub_NoSubscribersIsFine(t *testing.T) {
	hub := signals.NewHub()
	assert.NotPanics(t, func() {
		hub.TaskFailed(context.Background(), signals.TaskFailedEvent{TaskID: 1})
	})
}

func TestHub_PanickingCallbackIsRecovered(t *testing.T) {
	hub := signals.NewHub()
	ctx := context.Background()

	var called int
	hub.OnTaskFailed(func(context.Context, signals.TaskFailedEvent) {
		panic("subscriber bug")
	})
	hub.OnTaskFailed(func(context.Context, signals.TaskFailedEvent) {
		called++
	})

	assert.NotPanics(t, func() {
		hub.TaskFailed(ctx, signals.TaskFailedEvent{TaskID: 1})
	})
	// later subscribers still run after an earlier one panics
	assert.Equal(t, 1, called)
}

func TestFanout_DeliversToAll(t *testing.T) {
	first := signals.NewHub()
	second := signals.NewHub()

	var got []string
	first.OnTaskRescheduled(func(context.Context, signals.TaskRescheduledEvent) {
		got = append(got, "first")
	})
	second.OnTaskRescheduled(func(context.Context, signals.TaskRescheduledEvent) {
		got = append(got, "second")
	})

	fan := signals.Fanout{first, signals.Discard{}, second}
	fan.TaskRescheduled(context.Background(), signals.TaskRescheduledEvent{Task: &models.Task{ID: 1}})

	assert.Equal(t, []string{"first", "second"}, got)
}
