// Package cache provides the lookup cache that sits in front of Apiary reads.
// Entries never expire; callers clear the whole cache whenever they write
// something upstream that could change a cached record.
package cache

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/agentstation/orgsync/pkg/errors"
)

// Cache stores raw payloads by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
}

// DefaultPrefix namespaces orgsync's keys in a shared Redis.
const DefaultPrefix = "orgsync:apiary"

// New returns an in-memory cache for an empty url, or a Redis-backed one
// for a redis:// or rediss:// url.
func New(url string) (Cache, error) {
	if url == "" || url == "memory" {
		return NewMemory(), nil
	}
	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, errors.NewConfigError("cache", "unsupported CACHE_URL scheme: "+url, nil)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewConfigError("cache", "invalid CACHE_URL", err)
	}
	return NewRedis(redis.NewClient(opts), DefaultPrefix), nil
}
