package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/gatherly/social-push-server/audit/mongosink"
	"github.com/gatherly/social-push-server/compliance"
	"github.com/gatherly/social-push-server/config"
	"github.com/gatherly/social-push-server/db"
	"github.com/gatherly/social-push-server/dispatch"
	"github.com/gatherly/social-push-server/dispatch/provider/fcm"
	"github.com/gatherly/social-push-server/metric"
	"github.com/gatherly/social-push-server/preferences"
	"github.com/gatherly/social-push-server/push"
	"github.com/gatherly/social-push-server/queue"
	"github.com/gatherly/social-push-server/ratelimit"
	"github.com/gatherly/social-push-server/redisprovider"
	"github.com/gatherly/social-push-server/repo/tokenrepo"
	"github.com/gatherly/social-push-server/sweeper"
	"github.com/gatherly/social-push-server/tokencache"
)

var log = logger.NewNamed("main")

var flagConfigFile = flag.String("c", "etc/config.yml", "path to config file")

func main() {
	flag.Parse()

	conf, err := config.NewFromFile(*flagConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "can't load config:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a := new(app.App)
	bootstrap(a, conf)

	if err = a.Start(ctx); err != nil {
		log.Fatal("can't start app", zap.Error(err))
	}
	log.Info("app started")

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	sig := <-exit
	log.Info("received exit signal, stopping app...", zap.String("signal", sig.String()))

	closeCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err = a.Close(closeCtx); err != nil {
		log.Fatal("close error", zap.Error(err))
	}
	log.Info("goodbye!")
}

func bootstrap(a *app.App, conf *config.Config) {
	a.Register(conf).
		Register(metric.New()).
		Register(db.New()).
		Register(redisprovider.New()).
		Register(tokenrepo.New()).
		Register(tokencache.New()).
		Register(ratelimit.New()).
		Register(compliance.New()).
		Register(mongosink.New()).
		Register(dispatch.New()).
		Register(fcm.New()).
		Register(preferences.NewAllowAll()).
		Register(push.New()).
		Register(queue.New()).
		Register(queue.NewConsumer()).
		Register(sweeper.New())
}
