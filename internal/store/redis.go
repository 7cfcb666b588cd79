package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisBackend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisBackend stores cache entries in Redis with native TTLs. Every key is
// namespaced with KeyPrefix so Clear and Len never touch foreign keys.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBackend(cfg RedisConfig) *RedisBackend {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return &RedisBackend{rdb: rdb, prefix: cfg.KeyPrefix}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) fullKey(key string) string { return r.prefix + key }

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, r.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return b, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.rdb.Set(ctx, r.fullKey(key), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("redis DEL %q: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN %q: %w", pattern, err)
	}
	return keys, nil
}

func (r *RedisBackend) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := r.scan(ctx, r.fullKey(prefix)+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis DEL: %w", err)
	}
	return int(n), nil
}

func (r *RedisBackend) Len(ctx context.Context) (int, error) {
	keys, err := r.scan(ctx, r.prefix+"*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}
