package push

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
	outcomeRejected  = "rejected"
	outcomeNoDevices = "no_devices"
)

type metrics struct {
	dispatches *prometheus.CounterVec
}

func registerMetrics(reg *prometheus.Registry, p *push) {
	p.metrics.dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "push",
		Subsystem: "orchestrator",
		Name:      "dispatch_total",
		Help:      "dispatch calls by outcome",
	}, []string{"outcome"})
	reg.MustRegister(p.metrics.dispatches)
}

func (m *metrics) count(outcome string) {
	if m.dispatches != nil {
		m.dispatches.WithLabelValues(outcome).Inc()
	}
}
