package sweeper

import (
	"context"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/gatherly/social-push-server/repo/tokenrepo"
)

const CName = "push.sweeper"

var log = logger.NewNamed(CName)

func New() Sweeper {
	return new(sweeper)
}

type Config struct {
	IntervalHours int `yaml:"intervalHours"`
	RetentionDays int `yaml:"retentionDays"`
}

func (c Config) WithDefaults() Config {
	if c.IntervalHours <= 0 {
		c.IntervalHours = 24
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	return c
}

type configSource interface {
	GetSweeper() Config
}

// Sweeper periodically purges inactive tokens that fell out of the
// retention window.
type Sweeper interface {
	app.ComponentRunnable
}

type sweeper struct {
	repo         tokenrepo.TokenRepo
	conf         Config
	runCtx       context.Context
	runCtxCancel context.CancelFunc
	done         chan struct{}
}

func (s *sweeper) Init(a *app.App) (err error) {
	s.repo = a.MustComponent(tokenrepo.CName).(tokenrepo.TokenRepo)
	s.conf = a.MustComponent("config").(configSource).GetSweeper().WithDefaults()
	s.runCtx, s.runCtxCancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	return
}

func (s *sweeper) Name() (name string) {
	return CName
}

func (s *sweeper) Run(ctx context.Context) (err error) {
	go s.loop()
	return
}

func (s *sweeper) loop() {
	defer close(s.done)
	ticker := time.NewTicker(time.Duration(s.conf.IntervalHours) * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *sweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.runCtx, time.Minute)
	defer cancel()
	st := time.Now()
	removed, err := s.repo.SweepExpired(ctx, s.conf.RetentionDays)
	if err != nil {
		log.Error("sweep failed", zap.Error(err))
		return
	}
	log.Info("sweep done", zap.Int64("removed", removed), zap.Duration("dur", time.Since(st)))
}

func (s *sweeper) Close(ctx context.Context) (err error) {
	s.runCtxCancel()
	<-s.done
	return nil
}
