//go:generate mockgen -destination mock_ratelimit/mock_ratelimit.go github.com/gatherly/social-push-server/ratelimit RateLimiter

package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/redis/go-redis/v9"

	"github.com/gatherly/social-push-server/redisprovider"
)

const CName = "push.ratelimit"

//go:embed lua/check_windows.lua
var checkWindowsScript string

var ErrInvalidInput = errors.New("invalid input")

func New() RateLimiter {
	return new(rateLimiter)
}

type Config struct {
	MaxPerMinute int `yaml:"maxPerMinute"`
	MaxPerHour   int `yaml:"maxPerHour"`
	MaxPerDay    int `yaml:"maxPerDay"`
}

func (c Config) WithDefaults() Config {
	if c.MaxPerMinute <= 0 {
		c.MaxPerMinute = 60
	}
	if c.MaxPerHour <= 0 {
		c.MaxPerHour = 1000
	}
	if c.MaxPerDay <= 0 {
		c.MaxPerDay = 10000
	}
	return c
}

type configSource interface {
	GetLimits() Config
}

type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// RateLimiter bounds per-user dispatch volume across rolling minute, hour
// and day windows. Check-and-record is a single atomic redis script: a
// rejected call consumes no budget and concurrent callers cannot slip
// past a ceiling together.
type RateLimiter interface {
	CheckAndRecord(ctx context.Context, userId string) (Decision, error)
	app.Component
}

var windows = []struct {
	name   string
	length time.Duration
}{
	{"minute", time.Minute},
	{"hour", time.Hour},
	{"day", 24 * time.Hour},
}

type rateLimiter struct {
	client redis.UniversalClient
	conf   Config
	script *redis.Script
}

func (r *rateLimiter) Init(a *app.App) (err error) {
	r.client = a.MustComponent(redisprovider.CName).(redisprovider.RedisProvider).Redis()
	r.conf = a.MustComponent("config").(configSource).GetLimits().WithDefaults()
	r.script = redis.NewScript(checkWindowsScript)
	return
}

func (r *rateLimiter) Name() (name string) {
	return CName
}

func (r *rateLimiter) CheckAndRecord(ctx context.Context, userId string) (d Decision, err error) {
	if strings.TrimSpace(userId) == "" {
		return d, ErrInvalidInput
	}
	keys := make([]string, len(windows))
	for i, w := range windows {
		keys[i] = fmt.Sprintf("push:ratelimit:%s:%s", w.name, userId)
	}
	res, err := r.script.Run(ctx, r.client, keys,
		r.conf.MaxPerMinute, r.conf.MaxPerHour, r.conf.MaxPerDay,
		windows[0].length.Milliseconds(), windows[1].length.Milliseconds(), windows[2].length.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return d, err
	}
	if res[0] == 1 {
		d.Allowed = true
		return d, nil
	}
	violated := windows[res[1]-1]
	d.Reason = fmt.Sprintf("per-%s limit", violated.name)
	d.RetryAfter = time.Duration(res[2]) * time.Millisecond
	return d, nil
}
