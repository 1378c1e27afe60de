package jmvcc

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors a Runtime updates as
// transactions commit and snapshots come and go. Unlike a package-level
// metrics.go that registers into prometheus.DefaultRegisterer on
// import, each Runtime gets its own collectors registered into its own
// registry, so multiple Runtimes in one process (as the tests do)
// never collide on metric names.
type Metrics struct {
	registry        *prometheus.Registry
	currentEpoch    prometheus.Gauge
	earliestEpoch   prometheus.Gauge
	snapshotsActive prometheus.Gauge
	commitsTotal    prometheus.Counter
	conflictsTotal  prometheus.Counter
	cleanupsTotal   prometheus.Counter
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jmvcc",
			Name:      "current_epoch",
			Help:      "The next epoch to be assigned by the runtime's clock.",
		}),
		earliestEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jmvcc",
			Name:      "earliest_epoch",
			Help:      "The oldest epoch any live snapshot might still observe.",
		}),
		snapshotsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jmvcc",
			Name:      "snapshots_active",
			Help:      "Number of snapshots currently registered with the runtime.",
		}),
		commitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jmvcc",
			Name:      "commits_total",
			Help:      "Number of transactions successfully committed.",
		}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jmvcc",
			Name:      "conflicts_total",
			Help:      "Number of transactions that failed setup due to a write-write conflict.",
		}),
		cleanupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jmvcc",
			Name:      "cleanups_total",
			Help:      "Number of versions reclaimed by the snapshot registry.",
		}),
	}
	reg.MustRegister(m.currentEpoch, m.earliestEpoch, m.snapshotsActive, m.commitsTotal, m.conflictsTotal, m.cleanupsTotal)
	return m
}

// Registry exposes the prometheus registry so a caller can mount it
// under an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
