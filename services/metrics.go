package services

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pvetopo/models"
)

const metricsNamespace = "pvetopo"

// Metrics holds the collectors describing topology builds. Each instance
// registers on its own registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	fetchFailures *prometheus.CounterVec
	elements      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "topology_builds_total",
			Help:      "Topology builds by result (ok, upstream_error, cancelled).",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "topology_build_duration_seconds",
			Help:      "Wall time of a full topology build including upstream calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "guest_config_fetch_failures_total",
			Help:      "Guest config fetches that failed and were rendered without bridges.",
		}, []string{"kind"}),
		elements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "topology_elements",
			Help:      "Size of the most recent topology (nodes, edges, bridges).",
		}, []string{"kind"}),
	}

	m.Registry.MustRegister(
		m.builds,
		m.buildDuration,
		m.fetchFailures,
		m.elements,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) observeBuild(result string, elapsed time.Duration) {
	m.builds.WithLabelValues(result).Inc()
	m.buildDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeFetchFailure(kind models.GuestKind) {
	m.fetchFailures.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeTopology(topo models.Topology) {
	bridges := 0
	for _, n := range topo.Nodes {
		if strings.HasPrefix(n.ID, "br:") {
			bridges++
		}
	}
	m.elements.WithLabelValues("nodes").Set(float64(len(topo.Nodes)))
	m.elements.WithLabelValues("edges").Set(float64(len(topo.Edges)))
	m.elements.WithLabelValues("bridges").Set(float64(bridges))
}
