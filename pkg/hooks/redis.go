package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKeyDeferredWrites is the Redis list holding queued actions.
const RedisKeyDeferredWrites = "offline:deferred-writes"

// RedisQueue is a Queue stored as a Redis list, shared by every instance.
type RedisQueue struct {
	redis *redis.Client
	key   string
}

// NewRedisQueue creates a queue on RedisKeyDeferredWrites.
func NewRedisQueue(redisClient *redis.Client) *RedisQueue {
	return &RedisQueue{redis: redisClient, key: RedisKeyDeferredWrites}
}

func (q *RedisQueue) Push(ctx context.Context, action Action) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	if err := q.redis.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("push action: %w", err)
	}
	return nil
}

func (q *RedisQueue) PushFront(ctx context.Context, action Action) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	if err := q.redis.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("requeue action: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (Action, error) {
	data, err := q.redis.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Action{}, ErrQueueEmpty
	}
	if err != nil {
		return Action{}, fmt.Errorf("pop action: %w", err)
	}

	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return action, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.redis.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return int(n), nil
}

// RedisDisplayer publishes notifications as JSON on a Redis channel for
// subscribed clients to show.
type RedisDisplayer struct {
	redis   *redis.Client
	channel string
}

// NewRedisDisplayer creates a displayer publishing on channel.
func NewRedisDisplayer(redisClient *redis.Client, channel string) *RedisDisplayer {
	return &RedisDisplayer{redis: redisClient, channel: channel}
}

// Display implements Displayer.
func (d *RedisDisplayer) Display(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := d.redis.Publish(ctx, d.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
