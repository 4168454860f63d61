package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a go-redis client to the KV interface. Values never expire;
// the store is the durable copy, not a cache.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a Redis adapter.
type RedisOption func(*Redis)

// WithPrefix prepends prefix to every key, isolating the client's records
// when the Redis instance is shared.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: "mindful:"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
