package metric

import (
	"context"
	"net/http"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const CName = "push.metric"

var log = logger.NewNamed(CName)

func New() Metric {
	return new(metric)
}

type Config struct {
	Addr string `yaml:"addr"`
}

type configSource interface {
	GetMetric() Config
}

// Metric owns the process-wide prometheus registry. Components register
// their collectors in Init; the /metrics endpoint comes up in Run when
// an addr is configured.
type Metric interface {
	Registry() *prometheus.Registry
	app.ComponentRunnable
}

type metric struct {
	registry *prometheus.Registry
	addr     string
	server   *http.Server
}

func (m *metric) Init(a *app.App) (err error) {
	m.registry = prometheus.NewRegistry()
	m.addr = a.MustComponent("config").(configSource).GetMetric().Addr
	return
}

func (m *metric) Name() (name string) {
	return CName
}

func (m *metric) Registry() *prometheus.Registry {
	return m.registry
}

func (m *metric) Run(ctx context.Context) (err error) {
	if m.addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: m.addr, Handler: mux}
	go func() {
		if serveErr := m.server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(serveErr))
		}
	}()
	return
}

func (m *metric) Close(ctx context.Context) (err error) {
	if m.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	return m.server.Shutdown(shutdownCtx)
}
