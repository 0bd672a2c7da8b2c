package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wspoll"

// Collector holds the connection manager metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	connections  *prometheus.GaugeVec
	events       *prometheus.CounterVec
	sendsDropped prometheus.Counter
	polls        prometheus.Counter
	pollsWorked  prometheus.Counter
}

// New creates a Collector with Go runtime and process metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live connections by phase.",
		}, []string{"phase"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events delivered to the caller by kind.",
		}, []string{"kind"}),
		sendsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_dropped_total",
			Help:      "Send targets dropped because the connection was unknown or not ready.",
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll calls.",
		}),
		pollsWorked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_did_work_total",
			Help:      "Poll calls that made I/O progress.",
		}),
	}

	c.registry.MustRegister(
		c.connections,
		c.events,
		c.sendsDropped,
		c.polls,
		c.pollsWorked,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// SetConnections records the number of live connections in phase.
func (c *Collector) SetConnections(phase string, n int) {
	if c == nil {
		return
	}
	c.connections.WithLabelValues(phase).Set(float64(n))
}

// Event counts one delivered event.
func (c *Collector) Event(kind string) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(kind).Inc()
}

// SendDropped counts one dropped send target.
func (c *Collector) SendDropped() {
	if c == nil {
		return
	}
	c.sendsDropped.Inc()
}

// Poll counts one poll call.
func (c *Collector) Poll(didWork bool) {
	if c == nil {
		return
	}
	c.polls.Inc()
	if didWork {
		c.pollsWorked.Inc()
	}
}
