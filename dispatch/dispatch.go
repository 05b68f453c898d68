//go:generate mockgen -destination mock_dispatch/mock_dispatch.go github.com/gatherly/social-push-server/dispatch Dispatcher,Gateway

package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/cheggaaa/mb/v3"
	"github.com/ecodeclub/ekit/retry"
	"go.uber.org/zap"

	"github.com/gatherly/social-push-server/domain"
	"github.com/gatherly/social-push-server/metric"
	"github.com/gatherly/social-push-server/repo/tokenrepo"
	"github.com/gatherly/social-push-server/tokencache"
)

const CName = "push.dispatch"

var log = logger.NewNamed(CName)

func New() Dispatcher {
	return new(dispatcher)
}

type Config struct {
	SendTimeoutSec   int `yaml:"sendTimeoutSec"`
	MaxRetries       int `yaml:"maxRetries"`
	InitialBackoffMs int `yaml:"initialBackoffMs"`
	MaxBackoffMs     int `yaml:"maxBackoffMs"`
	BatchSize        int `yaml:"batchSize"`
}

func (c Config) WithDefaults() Config {
	if c.SendTimeoutSec <= 0 {
		c.SendTimeoutSec = 10
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.InitialBackoffMs <= 0 {
		c.InitialBackoffMs = 1000
	}
	if c.MaxBackoffMs <= 0 {
		c.MaxBackoffMs = 2000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	return c
}

type configSource interface {
	GetDispatch() Config
}

// Gateway delivers one payload to one device through the external push
// service. Failures come back as *domain.DispatchError so the dispatcher
// can tell a dead token from a network blip.
type Gateway interface {
	Send(ctx context.Context, token string, platform domain.Platform, payload domain.Payload) error
}

// Dispatcher drives per-token delivery with a bounded retry budget.
// Transient categories get backoff retries; token-related permanent
// categories deactivate the token and stop immediately.
type Dispatcher interface {
	RegisterGateway(p domain.Platform, gw Gateway)
	Send(ctx context.Context, token domain.DeviceToken, payload domain.Payload) domain.DispatchResult
	SendAll(ctx context.Context, tokens []domain.DeviceToken, payload domain.Payload) []domain.DispatchResult
	app.ComponentRunnable
}

type dispatcher struct {
	conf      Config
	gateways  map[domain.Platform]Gateway
	tokens    tokencache.TokenCache
	tokenRepo tokenrepo.TokenRepo
	touches   *mb.MB[string]
	sleep     func(ctx context.Context, d time.Duration) error
	metrics   metrics
}

func (d *dispatcher) Init(a *app.App) (err error) {
	d.conf = a.MustComponent("config").(configSource).GetDispatch().WithDefaults()
	d.tokens = a.MustComponent(tokencache.CName).(tokencache.TokenCache)
	d.tokenRepo = a.MustComponent(tokenrepo.CName).(tokenrepo.TokenRepo)
	d.gateways = make(map[domain.Platform]Gateway)
	d.touches = mb.New[string](100)
	d.sleep = ctxSleep
	if m, _ := a.Component(metric.CName).(metric.Metric); m != nil {
		registerMetrics(m.Registry(), d)
	}
	return
}

func (d *dispatcher) Name() (name string) {
	return CName
}

func (d *dispatcher) Run(ctx context.Context) (err error) {
	go d.flushTouches()
	return
}

func (d *dispatcher) RegisterGateway(p domain.Platform, gw Gateway) {
	d.gateways[p] = gw
}

// Send runs the per-attempt state machine: call the gateway, categorize
// the failure, back off and retry while the category is transient and
// budget remains.
func (d *dispatcher) Send(ctx context.Context, token domain.DeviceToken, payload domain.Payload) (res domain.DispatchResult) {
	res.Token = token.Token
	st := time.Now()
	defer func() {
		d.observe(res, time.Since(st))
	}()
	gw, ok := d.gateways[token.Platform]
	if !ok {
		log.Error("no gateway for platform", zap.String("platform", token.Platform.String()))
		res.Category = domain.CategoryConfigError
		return
	}
	backoff, err := retry.NewExponentialBackoffRetryStrategy(
		time.Duration(d.conf.InitialBackoffMs)*time.Millisecond,
		time.Duration(d.conf.MaxBackoffMs)*time.Millisecond,
		int32(d.conf.MaxRetries),
	)
	if err != nil {
		res.Category = domain.CategoryConfigError
		return
	}
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(d.conf.SendTimeoutSec)*time.Second)
		sendErr := gw.Send(callCtx, token.Token, token.Platform, payload)
		cancel()
		if sendErr == nil {
			res.Success = true
			d.queueTouch(token.Token)
			return
		}
		res.Category = categorize(sendErr)
		if res.Category.TokenRelated() {
			if err = d.tokens.Deactivate(ctx, token.Token); err != nil {
				log.Warn("deactivate failed", zap.String("token", token.Token), zap.Error(err))
			} else {
				log.Info("token deactivated", zap.String("token", token.Token), zap.String("category", string(res.Category)))
			}
			return
		}
		if !res.Category.Transient() {
			return
		}
		delay, hasNext := backoff.Next()
		if !hasNext {
			return
		}
		res.RetriesUsed++
		if sleepErr := d.sleep(ctx, delay); sleepErr != nil {
			res.Category = domain.CategoryNetworkError
			return
		}
	}
}

// SendAll fans out concurrently, at most BatchSize sends in flight. Each
// token retries on its own timer, so one slow device does not delay the
// rest.
func (d *dispatcher) SendAll(ctx context.Context, tokens []domain.DeviceToken, payload domain.Payload) []domain.DispatchResult {
	results := make([]domain.DispatchResult, len(tokens))
	sem := make(chan struct{}, d.conf.BatchSize)
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, token domain.DeviceToken) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = d.Send(ctx, token, payload)
		}(i, token)
	}
	wg.Wait()
	return results
}

func (d *dispatcher) queueTouch(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = d.touches.Add(ctx, token)
}

// flushTouches drains the touch buffer in the background. Touch is best
// effort; a failure is logged inside the repo and never reaches the
// dispatch path.
func (d *dispatcher) flushTouches() {
	ctx := mb.CtxWithTimeLimit(context.Background(), time.Second)
	cond := d.touches.NewCond().WithMin(1)
	for {
		tokens, err := cond.Wait(ctx)
		if err != nil {
			return
		}
		for _, token := range tokens {
			d.tokenRepo.Touch(context.Background(), token)
		}
	}
}

func (d *dispatcher) Close(ctx context.Context) (err error) {
	return d.touches.Close()
}

func categorize(err error) domain.ErrorCategory {
	var de *domain.DispatchError
	if errors.As(err, &de) {
		return de.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CategoryNetworkError
	}
	return domain.CategoryUnknown
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
