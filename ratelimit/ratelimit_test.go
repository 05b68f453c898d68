package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anyproto/any-sync/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/social-push-server/redisprovider/testredisprovider"
)

var ctx = context.Background()

func TestRateLimiter_AllowsUnderCeiling(t *testing.T) {
	fx := newFixture(t, Config{MaxPerMinute: 3})
	for range 3 {
		d, err := fx.CheckAndRecord(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestRateLimiter_RejectsTightestWindow(t *testing.T) {
	fx := newFixture(t, Config{MaxPerMinute: 2, MaxPerHour: 5})
	for range 2 {
		d, err := fx.CheckAndRecord(ctx, "u1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := fx.CheckAndRecord(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "per-minute limit", d.Reason)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestRateLimiter_RejectionConsumesNothing(t *testing.T) {
	fx := newFixture(t, Config{MaxPerMinute: 1, MaxPerHour: 2})
	d, err := fx.CheckAndRecord(ctx, "u1")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	// hammer the minute ceiling; none of these may count against the hour
	for range 5 {
		d, err = fx.CheckAndRecord(ctx, "u1")
		require.NoError(t, err)
		require.False(t, d.Allowed)
	}
	fx.mini.FastForward(time.Minute + time.Second)
	d, err = fx.CheckAndRecord(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	// the hour window now holds exactly the two allowed calls
	d, err = fx.CheckAndRecord(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "per-hour limit", d.Reason)
}

func TestRateLimiter_UsersAreIndependent(t *testing.T) {
	fx := newFixture(t, Config{MaxPerMinute: 1})
	d, err := fx.CheckAndRecord(ctx, "u1")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, err = fx.CheckAndRecord(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiter_BlankUser(t *testing.T) {
	fx := newFixture(t, Config{})
	_, err := fx.CheckAndRecord(ctx, " ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func newFixture(t *testing.T, conf Config) *fixture {
	fx := &fixture{
		RateLimiter: New(),
		a:           new(app.App),
	}
	redisProvider := testredisprovider.NewTestRedisProvider()
	fx.a.Register(testConfig{conf: conf}).Register(redisProvider).Register(fx.RateLimiter)
	require.NoError(t, fx.a.Start(ctx))
	fx.mini = redisProvider.(interface{ Mini() *miniredis.Miniredis }).Mini()
	t.Cleanup(func() {
		require.NoError(t, fx.a.Close(ctx))
	})
	return fx
}

type fixture struct {
	RateLimiter
	mini *miniredis.Miniredis
	a    *app.App
}

type testConfig struct {
	conf Config
}

func (t testConfig) Init(a *app.App) (err error) { return }
func (t testConfig) Name() (name string)         { return "config" }
func (t testConfig) GetLimits() Config           { return t.conf }
