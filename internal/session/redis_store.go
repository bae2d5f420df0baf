package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implementa Store sobre un hash por sesión con TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: "session:",
		ttl:    ttl,
	}
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	val, err := s.client.HGet(ctx, s.prefix+sid, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.prefix+sid, key, value)
	pipe.Expire(ctx, s.prefix+sid, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.HDel(ctx, s.prefix+sid, keys...).Err()
}

func (s *RedisStore) Destroy(ctx context.Context, sid string) error {
	return s.client.Del(ctx, s.prefix+sid).Err()
}
