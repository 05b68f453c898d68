package redisprovider

import (
	"context"

	"github.com/anyproto/any-sync/app"
	"github.com/redis/go-redis/v9"
)

const CName = "push.redisprovider"

func New() RedisProvider {
	return new(redisProvider)
}

type Config struct {
	Url       string `yaml:"url"`
	IsCluster bool   `yaml:"isCluster"`
}

type configSource interface {
	GetRedis() Config
}

type RedisProvider interface {
	Redis() redis.UniversalClient
	app.ComponentRunnable
}

type redisProvider struct {
	client redis.UniversalClient
}

func (r *redisProvider) Init(a *app.App) (err error) {
	conf := a.MustComponent("config").(configSource).GetRedis()
	if conf.IsCluster {
		opts, e := redis.ParseClusterURL(conf.Url)
		if e != nil {
			return e
		}
		r.client = redis.NewClusterClient(opts)
	} else {
		opts, e := redis.ParseURL(conf.Url)
		if e != nil {
			return e
		}
		r.client = redis.NewClient(opts)
	}
	return
}

func (r *redisProvider) Name() (name string) {
	return CName
}

func (r *redisProvider) Run(ctx context.Context) (err error) {
	return r.client.Ping(ctx).Err()
}

func (r *redisProvider) Redis() redis.UniversalClient {
	return r.client
}

func (r *redisProvider) Close(ctx context.Context) (err error) {
	return r.client.Close()
}
