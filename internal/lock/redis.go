package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisKeyPrefix = "batchledger:lock:"
	retryInterval  = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still carries our token, so an
// expired lock re-taken by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every process pointing at the same Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis builds a distributed locker. ttl bounds how long a crashed holder blocks others.
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Acquire takes every key with SET NX PX, polling until ctx ends.
func (r *Redis) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalize(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))
	release := func() {
		// The caller's context may already be cancelled; release must still run.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(releaseCtx, r.client, []string{held[i]}, token).Err(); err != nil {
				r.logger.Warn("failed to release lock", zap.String("key", held[i]), zap.Error(err))
			}
		}
	}

	for _, key := range keys {
		redisKey := redisKeyPrefix + key
		if err := r.take(ctx, redisKey, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, redisKey)
	}
	return release, nil
}

func (r *Redis) take(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
