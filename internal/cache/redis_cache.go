package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisTranslationCache struct {
	client *redis.Client
}

func NewRedisTranslationCache(addr string, password string, db int) *RedisTranslationCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTranslationCache{client: client}
}

func (c *RedisTranslationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTranslationCache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying connection so the process can share it
// with the distributed lock used by balance syncs.
func (c *RedisTranslationCache) Client() *redis.Client {
	return c.client
}

func (c *RedisTranslationCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisTranslationCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if value == "" {
		return nil
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}
