package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Redis keeps every entry as a field of one hash so Clear is a single DEL.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a cache stored in the hash named prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, key: prefix}
}

// Get retrieves a value from the hash.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := r.client.HGet(ctx, r.key, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	return result, true, nil
}

// Set stores a value in the hash.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.HSet(ctx, r.key, key, value).Err()
}

// Clear drops the whole hash.
func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
