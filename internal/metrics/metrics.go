// Package metrics provides Prometheus instrumentation for the chat backend.
// It exposes gauges for connection counts, counters for message and delivery
// throughput, and histograms for relay latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// MessagesTotal counts relayed messages, labeled by result:
	// "relayed", "rejected", or "failed".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of messages processed",
	}, []string{"result"})

	// DeliveriesTotal counts dispatch decisions by path: "live" or "push".
	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_deliveries_total",
		Help: "Total number of per-user delivery decisions by path",
	}, []string{"path"})

	// RoomsCreatedTotal counts created rooms, labeled "created" or "reused".
	RoomsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_rooms_created_total",
		Help: "Total number of room creation requests by outcome",
	}, []string{"outcome"})

	// RelayLatency records end-to-end relay latency (persist through
	// broadcast) in seconds.
	RelayLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_relay_latency_seconds",
		Help:    "Message relay latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MessagesTotal,
		DeliveriesTotal,
		RoomsCreatedTotal,
		RelayLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
