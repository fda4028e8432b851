// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every acpipe collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// MessagesTotal counts headers read, by message type
	MessagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpipe_messages_total",
			Help: "Total number of messages received on the report channel",
		},
		[]string{"type"},
	)

	// ReportsTotal counts successfully decoded reports, by variant
	ReportsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpipe_reports_total",
			Help: "Total number of decoded reports",
		},
		[]string{"kind"},
	)

	// DecodeErrorsTotal counts rejected messages, by reason
	DecodeErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpipe_decode_errors_total",
			Help: "Total number of messages that could not be decoded",
		},
		[]string{"reason"},
	)

	// ReadErrorsTotal counts transport read failures
	ReadErrorsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "acpipe_read_errors_total",
			Help: "Total number of transport read failures",
		},
	)

	// ActivePeers tracks connected peers
	ActivePeers = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "acpipe_active_peers",
			Help: "Number of peers currently connected",
		},
	)

	// RejectedPeersTotal counts connections refused because the peer limit was reached
	RejectedPeersTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "acpipe_rejected_peers_total",
			Help: "Total number of connections rejected at the peer limit",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
