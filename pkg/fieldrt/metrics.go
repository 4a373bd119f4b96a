package fieldrt

// metrics.go is a thin abstraction over Prometheus, the same shape as
// arena-cache's pkg/metrics.go: the runtime can be used with or without
// metrics; when disabled, the noop sink costs nothing on the per-round
// hot path.
//
// ┌──────────────────────────────────────────┬─────┐
// │ Metric                                   │ Type│
// ├──────────────────────────────────────────┼─────┤
// │ fieldrt_devices_joined_total             │ Ctr │
// │ fieldrt_rounds_total{outcome=ok|aborted} │ Ctr │
// └──────────────────────────────────────────┴─────┘

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink struct {
	devices prometheus.Counter
	rounds  *prometheus.CounterVec
}

// newMetricsSink decides which implementation to use. A nil registry
// disables metrics; every method on the returned sink is then a no-op.
func newMetricsSink(reg *prometheus.Registry) (*metricsSink, error) {
	if reg == nil {
		return &metricsSink{}, nil
	}
	m := &metricsSink{
		devices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldrt",
			Name:      "devices_joined_total",
			Help:      "Number of devices joined to the simulation.",
		}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldrt",
			Name:      "rounds_total",
			Help:      "Number of device rounds completed, labelled by outcome.",
		}, []string{"outcome"}),
	}
	if err := reg.Register(m.devices); err != nil {
		return nil, err
	}
	if err := reg.Register(m.rounds); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsSink) observeJoin() {
	if m == nil || m.devices == nil {
		return
	}
	m.devices.Inc()
}

func (m *metricsSink) observeRound(ok bool) {
	if m == nil || m.rounds == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "aborted"
	}
	m.rounds.WithLabelValues(outcome).Inc()
}
