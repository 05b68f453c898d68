//go:generate mockgen -destination mock_tokencache/mock_tokencache.go github.com/gatherly/social-push-server/tokencache TokenCache

package tokencache

import (
	"context"
	"time"

	"github.com/anyproto/any-sync/app"
	gocache "github.com/patrickmn/go-cache"

	"github.com/gatherly/social-push-server/domain"
	"github.com/gatherly/social-push-server/repo/tokenrepo"
)

const CName = "push.tokencache"

func New() TokenCache {
	return new(tokenCache)
}

type Config struct {
	TTLSec             int `yaml:"ttlSec"`
	CleanupIntervalSec int `yaml:"cleanupIntervalSec"`
}

func (c Config) WithDefaults() Config {
	if c.TTLSec <= 0 {
		c.TTLSec = 300
	}
	if c.CleanupIntervalSec <= 0 {
		c.CleanupIntervalSec = 600
	}
	return c
}

type configSource interface {
	GetCache() Config
}

// TokenCache is a read-through cache in front of the token repo keyed by
// user. Fan-out bursts for the same user within the TTL hit memory; every
// mutation drops the affected user's entry before touching the store.
type TokenCache interface {
	GetActiveTokens(ctx context.Context, userId string) ([]domain.DeviceToken, error)
	Store(ctx context.Context, userId, token string, platform domain.Platform) error
	Remove(ctx context.Context, token string) error
	Deactivate(ctx context.Context, token string) error
	app.Component
}

type tokenCache struct {
	repo  tokenrepo.TokenRepo
	users *gocache.Cache
	// owner tracks token -> userId for entries currently cached, so a
	// mutation addressed by token alone can find the entry to drop.
	owner *gocache.Cache
}

func (c *tokenCache) Init(a *app.App) (err error) {
	conf := a.MustComponent("config").(configSource).GetCache()
	ttl := time.Duration(conf.TTLSec) * time.Second
	cleanup := time.Duration(conf.CleanupIntervalSec) * time.Second
	c.repo = a.MustComponent(tokenrepo.CName).(tokenrepo.TokenRepo)
	c.users = gocache.New(ttl, cleanup)
	c.owner = gocache.New(ttl, cleanup)
	return
}

func (c *tokenCache) Name() (name string) {
	return CName
}

func (c *tokenCache) GetActiveTokens(ctx context.Context, userId string) ([]domain.DeviceToken, error) {
	if v, ok := c.users.Get(userId); ok {
		return v.([]domain.DeviceToken), nil
	}
	tokens, err := c.repo.GetActiveTokens(ctx, userId)
	if err != nil {
		return nil, err
	}
	c.users.Set(userId, tokens, gocache.DefaultExpiration)
	for _, tok := range tokens {
		c.owner.Set(tok.Token, userId, gocache.DefaultExpiration)
	}
	return tokens, nil
}

func (c *tokenCache) Store(ctx context.Context, userId, token string, platform domain.Platform) error {
	c.invalidateUser(userId)
	c.invalidateToken(token) // the token may move between users
	return c.repo.Store(ctx, userId, token, platform)
}

func (c *tokenCache) Remove(ctx context.Context, token string) error {
	c.invalidateToken(token)
	return c.repo.Remove(ctx, token)
}

func (c *tokenCache) Deactivate(ctx context.Context, token string) error {
	c.invalidateToken(token)
	return c.repo.Deactivate(ctx, token)
}

func (c *tokenCache) invalidateUser(userId string) {
	c.users.Delete(userId)
}

func (c *tokenCache) invalidateToken(token string) {
	if v, ok := c.owner.Get(token); ok {
		c.users.Delete(v.(string))
	}
	c.owner.Delete(token)
}
