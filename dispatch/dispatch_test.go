package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/social-push-server/domain"
	"github.com/gatherly/social-push-server/repo/tokenrepo"
	"github.com/gatherly/social-push-server/tokencache"
)

var ctx = context.Background()

func androidToken(token string) domain.DeviceToken {
	return domain.DeviceToken{Token: token, UserId: "u1", Platform: domain.PlatformAndroid, Active: true}
}

func somePayload() domain.Payload {
	return domain.Payload{Title: "hi", Body: "there", Data: map[string]string{}}
}

func TestDispatcher_SendSuccess(t *testing.T) {
	fx := newFixture(t)
	res := fx.Send(ctx, androidToken("tok-1"), somePayload())
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.RetriesUsed)
	assert.Equal(t, 1, fx.gateway.calls("tok-1"))
	assert.Eventually(t, func() bool {
		return fx.repo.touched("tok-1") == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestDispatcher_TransientRetryBudget(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.fail("tok-1", domain.CategoryNetworkError, -1)
	res := fx.Send(ctx, androidToken("tok-1"), somePayload())
	assert.False(t, res.Success)
	assert.Equal(t, domain.CategoryNetworkError, res.Category)
	assert.Equal(t, 2, res.RetriesUsed)
	// 1 initial attempt + 2 retries
	assert.Equal(t, 3, fx.gateway.calls("tok-1"))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fx.slept)
}

func TestDispatcher_TransientThenSuccess(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.fail("tok-1", domain.CategoryNetworkError, 2)
	res := fx.Send(ctx, androidToken("tok-1"), somePayload())
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.RetriesUsed)
	assert.Equal(t, 3, fx.gateway.calls("tok-1"))
}

func TestDispatcher_UnknownIsTransient(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.failPlain("tok-1", -1)
	res := fx.Send(ctx, androidToken("tok-1"), somePayload())
	assert.False(t, res.Success)
	assert.Equal(t, domain.CategoryUnknown, res.Category)
	assert.Equal(t, 3, fx.gateway.calls("tok-1"))
}

func TestDispatcher_InvalidTokenDeactivatesWithoutRetry(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.fail("tok-1", domain.CategoryInvalidToken, -1)
	res := fx.Send(ctx, androidToken("tok-1"), somePayload())
	assert.False(t, res.Success)
	assert.Equal(t, domain.CategoryInvalidToken, res.Category)
	assert.Equal(t, 0, res.RetriesUsed)
	assert.Equal(t, 1, fx.gateway.calls("tok-1"))
	assert.True(t, fx.cache.deactivated("tok-1"))
}

func TestDispatcher_PermissionDeniedNoDeactivate(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.fail("tok-1", domain.CategoryPermissionDenied, -1)
	res := fx.Send(ctx, androidToken("tok-1"), somePayload())
	assert.False(t, res.Success)
	assert.Equal(t, 1, fx.gateway.calls("tok-1"))
	assert.False(t, fx.cache.deactivated("tok-1"))
}

func TestDispatcher_MissingGateway(t *testing.T) {
	fx := newFixture(t)
	res := fx.Send(ctx, domain.DeviceToken{Token: "tok-1", Platform: domain.PlatformIOS}, somePayload())
	assert.False(t, res.Success)
	assert.Equal(t, domain.CategoryConfigError, res.Category)
}

func TestDispatcher_SendAll(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.fail("tok-2", domain.CategoryInvalidToken, -1)
	tokens := []domain.DeviceToken{
		androidToken("tok-1"),
		androidToken("tok-2"),
		androidToken("tok-3"),
	}
	results := fx.SendAll(ctx, tokens, somePayload())
	require.Len(t, results, 3)
	var sent, failed int
	for _, res := range results {
		if res.Success {
			sent++
		} else {
			failed++
		}
	}
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	// result order matches token order
	assert.Equal(t, "tok-2", results[1].Token)
	assert.False(t, results[1].Success)
}

func newFixture(t *testing.T) *fixture {
	fx := &fixture{
		Dispatcher: New(),
		gateway:    newStubGateway(),
		cache:      &fakeCache{},
		repo:       &fakeRepo{},
		a:          new(app.App),
	}
	fx.a.Register(testConfig{}).
		Register(fx.repo).
		Register(fx.cache).
		Register(fx.Dispatcher)
	require.NoError(t, fx.a.Start(ctx))
	d := fx.Dispatcher.(*dispatcher)
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		fx.mu.Lock()
		fx.slept = append(fx.slept, dur)
		fx.mu.Unlock()
		return nil
	}
	fx.RegisterGateway(domain.PlatformAndroid, fx.gateway)
	t.Cleanup(func() {
		require.NoError(t, fx.a.Close(ctx))
	})
	return fx
}

type fixture struct {
	Dispatcher
	gateway *stubGateway
	cache   *fakeCache
	repo    *fakeRepo
	mu      sync.Mutex
	slept   []time.Duration
	a       *app.App
}

type testConfig struct{}

func (t testConfig) Init(a *app.App) (err error) { return }
func (t testConfig) Name() (name string)         { return "config" }
func (t testConfig) GetDispatch() Config         { return Config{}.WithDefaults() }

// stubGateway fails a token a scripted number of times (-1 forever).
type stubGateway struct {
	mu       sync.Mutex
	failures map[string]int
	category map[string]domain.ErrorCategory
	plain    map[string]bool
	attempts map[string]int
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		failures: map[string]int{},
		category: map[string]domain.ErrorCategory{},
		plain:    map[string]bool{},
		attempts: map[string]int{},
	}
}

func (g *stubGateway) fail(token string, category domain.ErrorCategory, times int) {
	g.failures[token] = times
	g.category[token] = category
}

func (g *stubGateway) failPlain(token string, times int) {
	g.failures[token] = times
	g.plain[token] = true
}

func (g *stubGateway) calls(token string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts[token]
}

func (g *stubGateway) Send(ctx context.Context, token string, platform domain.Platform, payload domain.Payload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts[token]++
	left, scripted := g.failures[token]
	if !scripted || left == 0 {
		return nil
	}
	if left > 0 {
		g.failures[token] = left - 1
	}
	if g.plain[token] {
		return fmt.Errorf("gateway hiccup for %s", token)
	}
	return domain.NewDispatchError(g.category[token], errors.New("gateway rejected"))
}

type fakeCache struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func (f *fakeCache) Init(a *app.App) (err error) { return }
func (f *fakeCache) Name() (name string)         { return tokencache.CName }

func (f *fakeCache) GetActiveTokens(ctx context.Context, userId string) ([]domain.DeviceToken, error) {
	return nil, nil
}

func (f *fakeCache) Store(ctx context.Context, userId, token string, platform domain.Platform) error {
	return nil
}

func (f *fakeCache) Remove(ctx context.Context, token string) error {
	return f.Deactivate(ctx, token)
}

func (f *fakeCache) Deactivate(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens == nil {
		f.tokens = map[string]bool{}
	}
	f.tokens[token] = true
	return nil
}

func (f *fakeCache) deactivated(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[token]
}

type fakeRepo struct {
	mu      sync.Mutex
	touches map[string]int
}

func (f *fakeRepo) Init(a *app.App) (err error)           { return }
func (f *fakeRepo) Name() (name string)                   { return tokenrepo.CName }
func (f *fakeRepo) Run(ctx context.Context) (err error)   { return }
func (f *fakeRepo) Close(ctx context.Context) (err error) { return }

func (f *fakeRepo) Store(ctx context.Context, userId, token string, platform domain.Platform) error {
	return nil
}
func (f *fakeRepo) Remove(ctx context.Context, token string) error     { return nil }
func (f *fakeRepo) Deactivate(ctx context.Context, token string) error { return nil }
func (f *fakeRepo) GetActiveTokens(ctx context.Context, userId string) ([]domain.DeviceToken, error) {
	return nil, nil
}
func (f *fakeRepo) SweepExpired(ctx context.Context, retentionDays int) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) Touch(ctx context.Context, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touches == nil {
		f.touches = map[string]int{}
	}
	f.touches[token]++
}

func (f *fakeRepo) touched(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touches[token]
}
