package tracker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/embedsync/cascade/logger"
)

// RedisStore keeps watch digests in a single redis hash, so change
// detection survives process restarts when several workers share one
// document store.
type RedisStore struct {
	client *redis.Client
	key    string
	log    *logger.Logger
}

// NewRedisStore creates a redis-backed HashStore. key names the redis
// hash holding all digests, e.g. "cascade:watch".
func NewRedisStore(client *redis.Client, key string, log *logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
		log:    log,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.HGet(ctx, s.key, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		s.log.Error("redis HGET failed", "key", key, "error", err)
		return "", fmt.Errorf("failed to get digest %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) Put(ctx context.Context, key, digest string) error {
	if err := s.client.HSet(ctx, s.key, key, digest).Err(); err != nil {
		s.log.Error("redis HSET failed", "key", key, "error", err)
		return fmt.Errorf("failed to put digest %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.key, key).Err(); err != nil {
		s.log.Error("redis HDEL failed", "key", key, "error", err)
		return fmt.Errorf("failed to delete digest %s: %w", key, err)
	}
	return nil
}
