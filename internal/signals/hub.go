package signals

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub is an in-process Notifier with explicit callback registration.
// Callbacks run synchronously on the emitting goroutine; a panicking callback
// is recovered and logged so it never propagates into the scheduler.
type Hub struct {
	mu            sync.RWMutex
	onFailed      []func(context.Context, TaskFailedEvent)
	onRescheduled []func(context.Context, TaskRescheduledEvent)
}

// NewHub creates a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{}
}

// OnTaskFailed registers a callback for task_failed events.
func (h *Hub) OnTaskFailed(fn func(context.Context, TaskFailedEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFailed = append(h.onFailed, fn)
}

// OnTaskRescheduled registers a callback for task_rescheduled events.
func (h *Hub) OnTaskRescheduled(fn func(context.Context, TaskRescheduledEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRescheduled = append(h.onRescheduled, fn)
}

func (h *Hub) TaskFailed(ctx context.Context, event TaskFailedEvent) {
	h.mu.RLock()
	callbacks := h.onFailed
	h.mu.RUnlock()

	for _, fn := range callbacks {
		safeCall(func() { fn(ctx, event) })
	}
}

func (h *Hub) TaskRescheduled(ctx context.Context, event TaskRescheduledEvent) {
	h.mu.RLock()
	callbacks := h.onRescheduled
	h.mu.RUnlock()

	for _, fn := range callbacks {
		safeCall(func() { fn(ctx, event) })
	}
}

func safeCall(fn func()) {
	defer func() {
		if rcv := recover(); rcv != nil {
			log.Error().Interface("panic", rcv).Msg("Signal callback panicked")
		}
	}()
	fn()
}
