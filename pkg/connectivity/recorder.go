package connectivity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Recorder persists connectivity transitions so that other instances and
// later runs can see them.
type Recorder interface {
	Record(ctx context.Context, state State) error
}

// RedisRecorder stores the last transition in Redis.
type RedisRecorder struct {
	redis *redis.Client
}

// NewRedisRecorder creates a recorder backed by redisClient.
func NewRedisRecorder(redisClient *redis.Client) *RedisRecorder {
	return &RedisRecorder{redis: redisClient}
}

// Record stores state atomically.
func (r *RedisRecorder) Record(ctx context.Context, state State) error {
	lastChangeJSON, err := json.Marshal(state.LastChange)
	if err != nil {
		return fmt.Errorf("marshal last change: %w", err)
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyOnline, state.Online, 0)
	pipe.Set(ctx, RedisKeyFailures, state.ConsecutiveFailures, 0)
	pipe.Set(ctx, RedisKeyLastChange, lastChangeJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store connectivity state in redis: %w", err)
	}
	return nil
}

// Load returns the last recorded state. With nothing recorded it reports
// the network as reachable.
func (r *RedisRecorder) Load(ctx context.Context) (*State, error) {
	online, err := r.redis.Get(ctx, RedisKeyOnline).Bool()
	if errors.Is(err, redis.Nil) {
		return &State{Online: true, LastChange: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get online: %w", err)
	}

	failures, err := r.redis.Get(ctx, RedisKeyFailures).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get consecutive failures: %w", err)
	}

	state := &State{Online: online, ConsecutiveFailures: failures}

	lastChangeStr, err := r.redis.Get(ctx, RedisKeyLastChange).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last change: %w", err)
	}
	if lastChangeStr != "" {
		if err := json.Unmarshal([]byte(lastChangeStr), &state.LastChange); err != nil {
			return nil, fmt.Errorf("parse last change: %w", err)
		}
	}
	return state, nil
}
