package signals

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	TaskFailedChannel      = "bgtask:task_failed"
	TaskRescheduledChannel = "bgtask:task_rescheduled"
)

// RedisNotifier publishes signal events as JSON on Redis pub/sub channels so
// collaborators outside the worker process can observe them. Publish errors
// are logged and swallowed: delivery failure never reaches the scheduler.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier and verifies the connection.
func NewRedisNotifier(addr, password string, db int) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return &RedisNotifier{client: client}, nil
}

func (r *RedisNotifier) TaskFailed(ctx context.Context, event TaskFailedEvent) {
	r.publish(ctx, TaskFailedChannel, event)
}

func (r *RedisNotifier) TaskRescheduled(ctx context.Context, event TaskRescheduledEvent) {
	r.publish(ctx, TaskRescheduledChannel, event)
}

func (r *RedisNotifier) publish(ctx context.Context, channel string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Could not serialize signal event")
		return
	}

	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Could not publish signal event")
	}
}

// Close terminates the Redis connection.
func (r *RedisNotifier) Close() error {
	return r.client.Close()
}
