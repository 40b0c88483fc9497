package chain

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "fedchain"

type metrics struct {
	connected    prometheus.Counter
	disconnected prometheus.Counter
	rejected     *prometheus.CounterVec
	reorgs       prometheus.Counter
	changes      *prometheus.CounterVec
	height       prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		connected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_connected_total",
			Help:      "Blocks connected to the active chain.",
		}),
		disconnected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_disconnected_total",
			Help:      "Blocks disconnected from the active chain.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_rejected_total",
			Help:      "Blocks rejected, by reason.",
		}, []string{"reason"}),
		reorgs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reorgs_total",
			Help:      "Tip changes that disconnected at least one block.",
		}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "federation_changes_total",
			Help:      "Governance parameter changes applied, by kind.",
		}, []string{"kind"}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "chain_height",
			Help:      "Height of the active chain tip.",
		}),
	}

	for _, c := range []prometheus.Collector{m.connected, m.disconnected, m.rejected, m.reorgs, m.changes, m.height} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
