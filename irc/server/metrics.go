package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by the event loop.
// Each server gets its own registry so tests can run servers side by side.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	Disconnects         *prometheus.CounterVec
	Commands            *prometheus.CounterVec
	BytesRead           prometheus.Counter
	BytesWritten        prometheus.Counter
	Relays              prometheus.Counter
	Sessions            prometheus.Gauge
	Channels            prometheus.Gauge
}

// NewMetrics registers the server collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircserv",
			Name:      "connections_accepted_total",
			Help:      "Connections accepted on the listening endpoint.",
		}),
		Disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircserv",
			Name:      "disconnects_total",
			Help:      "Sessions torn down, by reason.",
		}, []string{"reason"}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircserv",
			Name:      "commands_total",
			Help:      "Dispatched protocol commands.",
		}, []string{"command"}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircserv",
			Name:      "bytes_read_total",
			Help:      "Bytes read from client sessions.",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircserv",
			Name:      "bytes_written_total",
			Help:      "Bytes written to client sessions.",
		}),
		Relays: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircserv",
			Name:      "relays_total",
			Help:      "Messages relayed into channels through the admin API.",
		}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircserv",
			Name:      "sessions",
			Help:      "Live sessions, registered or not.",
		}),
		Channels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircserv",
			Name:      "channels",
			Help:      "Channels with at least one member.",
		}),
	}
}
