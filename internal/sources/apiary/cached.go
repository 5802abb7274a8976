package apiary

import (
	"context"
	"encoding/json"

	"github.com/agentstation/orgsync/pkg/cache"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/sources"
)

const userKeyPrefix = "apiary_user_"

// CachedClient caches user lookups in front of another Apiary client.
// Any write clears the whole cache first, since a project manager change
// alters the manager of every member of the team.
type CachedClient struct {
	client sources.Apiary
	cache  cache.Cache
}

// NewCachedClient wraps client with c.
func NewCachedClient(client sources.Apiary, c cache.Cache) *CachedClient {
	return &CachedClient{client: client, cache: c}
}

// User returns the cached record for key, fetching it on a miss.
// Not-found answers are not cached.
func (c *CachedClient) User(ctx context.Context, key string) (*sources.ApiaryUser, error) {
	cacheKey := userKeyPrefix + key

	data, ok, err := c.cache.Get(ctx, cacheKey)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", cacheKey).Msg("Apiary cache read failed")
	} else if ok {
		var user sources.ApiaryUser
		if err := json.Unmarshal(data, &user); err == nil {
			return &user, nil
		}
	}

	user, err := c.client.User(ctx, key)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(user)
	if err != nil {
		return nil, errors.WrapParse("json", "apiary user", err)
	}
	if err := c.cache.Set(ctx, cacheKey, data); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", cacheKey).Msg("Apiary cache write failed")
	}
	return user, nil
}

// Teams is not cached.
func (c *CachedClient) Teams(ctx context.Context) ([]sources.ApiaryTeam, error) {
	return c.client.Teams(ctx)
}

// Team is not cached.
func (c *CachedClient) Team(ctx context.Context, id int64) (*sources.ApiaryTeam, error) {
	return c.client.Team(ctx, id)
}

// SetProjectManager clears the cache and forwards the write.
func (c *CachedClient) SetProjectManager(ctx context.Context, teamID int64, userID *int64) (*sources.ApiaryTeam, error) {
	if err := c.Clear(ctx); err != nil {
		return nil, err
	}
	return c.client.SetProjectManager(ctx, teamID, userID)
}

// Clear drops every cached record.
func (c *CachedClient) Clear(ctx context.Context) error {
	if err := c.cache.Clear(ctx); err != nil {
		return errors.WrapResource("clear", "cache", "apiary", err)
	}
	return nil
}

var _ sources.Apiary = (*CachedClient)(nil)
