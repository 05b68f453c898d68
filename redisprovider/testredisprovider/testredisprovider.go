package testredisprovider

import (
	"context"

	"github.com/alicebob/miniredis/v2"
	"github.com/anyproto/any-sync/app"
	"github.com/redis/go-redis/v9"

	"github.com/gatherly/social-push-server/redisprovider"
)

// NewTestRedisProvider starts an in-process miniredis and serves a client
// connected to it. For fixtures only.
func NewTestRedisProvider() redisprovider.RedisProvider {
	return new(testRedisProvider)
}

type testRedisProvider struct {
	mini   *miniredis.Miniredis
	client redis.UniversalClient
}

func (t *testRedisProvider) Init(a *app.App) (err error) {
	if t.mini, err = miniredis.Run(); err != nil {
		return
	}
	t.client = redis.NewClient(&redis.Options{Addr: t.mini.Addr()})
	return
}

func (t *testRedisProvider) Name() (name string) {
	return redisprovider.CName
}

func (t *testRedisProvider) Run(ctx context.Context) (err error) {
	return t.client.Ping(ctx).Err()
}

func (t *testRedisProvider) Redis() redis.UniversalClient {
	return t.client
}

func (t *testRedisProvider) Close(ctx context.Context) (err error) {
	err = t.client.Close()
	t.mini.Close()
	return
}

// Mini exposes the underlying miniredis for time manipulation in tests.
func (t *testRedisProvider) Mini() *miniredis.Miniredis {
	return t.mini
}
