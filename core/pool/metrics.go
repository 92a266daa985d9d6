package pool

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes per-pool occupancy as Prometheus gauges/counters,
// grounded on the teacher's use of github.com/prometheus/client_golang
// for server-side observability, here repurposed for client-side
// connection-pool visibility (DOMAIN STACK in SPEC_FULL.md).
type Metrics struct {
	Idle           *prometheus.GaugeVec
	Leased         *prometheus.GaugeVec
	ConnsCreated   *prometheus.GaugeVec
	RequestsServed *prometheus.GaugeVec
}

// NewMetrics registers the pool metric family on reg. Callers typically
// register once per process and pass the same *Metrics to every pool.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Idle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fastclient",
			Subsystem: "pool",
			Name:      "idle_connections",
			Help:      "Idle connections currently held per pool key.",
		}, []string{"pool_key"}),
		Leased: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fastclient",
			Subsystem: "pool",
			Name:      "leased_connections",
			Help:      "Connections currently leased to a request per pool key.",
		}, []string{"pool_key"}),
		ConnsCreated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fastclient",
			Subsystem: "pool",
			Name:      "connections_created_total",
			Help:      "Connections dialed per pool key (cumulative).",
		}, []string{"pool_key"}),
		RequestsServed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fastclient",
			Subsystem: "pool",
			Name:      "requests_served_total",
			Help:      "Requests served per pool key (cumulative).",
		}, []string{"pool_key"}),
	}
	reg.MustRegister(m.Idle, m.Leased, m.ConnsCreated, m.RequestsServed)
	return m
}

// Observe snapshots a Pool's current Stats into the metric family under key.
func (m *Metrics) Observe(key string, s Stats) {
	if m == nil {
		return
	}
	m.Idle.WithLabelValues(key).Set(float64(s.Idle))
	m.Leased.WithLabelValues(key).Set(float64(s.Leased))
	m.ConnsCreated.WithLabelValues(key).Set(float64(s.ConnsCreated))
	m.RequestsServed.WithLabelValues(key).Set(float64(s.RequestsServed))
}
