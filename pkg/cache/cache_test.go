package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/pkg/cache"
	"github.com/agentstation/orgsync/pkg/errors"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()

	_, ok, err := c.Get(ctx, "apiary_user_gburdell3")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "apiary_user_gburdell3", []byte(`{"id":1}`)))
	require.NoError(t, c.Set(ctx, "apiary_user_other", []byte(`{"id":2}`)))
	assert.Equal(t, 2, c.Len())

	got, ok, err := c.Get(ctx, "apiary_user_gburdell3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":1}`, string(got))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
	_, ok, _ = c.Get(ctx, "apiary_user_gburdell3")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	c, err := cache.New("")
	require.NoError(t, err)
	assert.IsType(t, &cache.Memory{}, c)

	c, err = cache.New("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.IsType(t, &cache.Redis{}, c)

	_, err = cache.New("memcached://localhost")
	assert.True(t, errors.IsNotConfigured(err))
}
