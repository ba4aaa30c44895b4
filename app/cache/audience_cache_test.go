package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis answers Get and Set from a map; every other command panics on the nil embed
type fakeRedis struct {
	redis.Cmdable
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := f.values[key]; {
	case f.err != nil:
		cmd.SetErr(f.err)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(v)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func TestKey(t *testing.T) {
	assert.Equal(t, "nba:audience:7:v3", Key("nba", 7, 3))
	assert.Equal(t, "audience:7:v3", Key("", 7, 3))
}

func TestAudienceCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss returns nil", func(t *testing.T) {
		c := NewAudienceCache(newFakeRedis(), "nba", time.Minute)
		got, err := c.Get(ctx, 1, 1)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set then get", func(t *testing.T) {
		rc := newFakeRedis()
		c := NewAudienceCache(rc, "nba", time.Minute)
		in := &dto.AudienceResult{CampaignID: 4, Version: 2, SizeEstimate: 3, Sample: []string{"a", "b", "c"}, Cached: true}
		require.NoError(t, c.Set(ctx, in))

		assert.Equal(t, time.Minute, rc.ttls["nba:audience:4:v2"])
		got, err := c.Get(ctx, 4, 2)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 3, got.SizeEstimate)
		assert.Equal(t, []string{"a", "b", "c"}, got.Sample)
		assert.False(t, got.Cached)
	})

	t.Run("versions are separate entries", func(t *testing.T) {
		c := NewAudienceCache(newFakeRedis(), "nba", 0)
		require.NoError(t, c.Set(ctx, &dto.AudienceResult{CampaignID: 4, Version: 1, SizeEstimate: 9}))
		got, err := c.Get(ctx, 4, 2)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("corrupt entry is a miss", func(t *testing.T) {
		rc := newFakeRedis()
		rc.values["nba:audience:5:v1"] = "{not json"
		c := NewAudienceCache(rc, "nba", time.Minute)
		got, err := c.Get(ctx, 5, 1)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("server errors surface", func(t *testing.T) {
		rc := newFakeRedis()
		rc.err = errors.New("connection refused")
		c := NewAudienceCache(rc, "nba", time.Minute)

		_, err := c.Get(ctx, 1, 1)
		assert.ErrorContains(t, err, "connection refused")
		assert.Error(t, c.Set(ctx, &dto.AudienceResult{CampaignID: 1, Version: 1}))
	})
}
