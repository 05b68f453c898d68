package dispatch

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gatherly/social-push-server/domain"
)

type metrics struct {
	delivered    atomic.Int64
	failed       atomic.Int64
	sendDuration *prometheus.SummaryVec
}

func registerMetrics(reg *prometheus.Registry, d *dispatcher) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "delivered",
		Help:      "total count of delivered sends",
	}, func() float64 {
		return float64(d.metrics.delivered.Load())
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "failed",
		Help:      "total count of permanently failed sends",
	}, func() float64 {
		return float64(d.metrics.failed.Load())
	}))
	d.metrics.sendDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "duration_seconds",
		Objectives: map[float64]float64{
			0.5:  0.5,
			0.85: 0.01,
			0.95: 0.0005,
			0.99: 0.0001,
		},
	}, []string{"category"})
	reg.MustRegister(d.metrics.sendDuration)
}

func (d *dispatcher) observe(res domain.DispatchResult, dur time.Duration) {
	if res.Success {
		d.metrics.delivered.Add(1)
	} else {
		d.metrics.failed.Add(1)
	}
	if d.metrics.sendDuration != nil {
		d.metrics.sendDuration.WithLabelValues(string(res.Category)).Observe(dur.Seconds())
	}
}
