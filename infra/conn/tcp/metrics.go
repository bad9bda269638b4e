package tcp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	commandLabel = "command"
	statusLabel  = "status"
	causeLabel   = "cause"
	resultLabel  = "result"
)

var (
	exchangeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_exchange_total",
			Help: "Number of completed command exchanges with monitor",
		},
		[]string{commandLabel, statusLabel},
	)

	exchangeTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monitor_exchange_duration_seconds",
			Help:    "Latency of one request/response exchange with monitor",
			Buckets: prometheus.DefBuckets,
		},
		[]string{commandLabel},
	)

	connectionLostCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_connection_lost_total",
			Help: "Number of exchanges that left the connector disconnected",
		},
		[]string{causeLabel},
	)

	handshakeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_handshake_total",
			Help: "Number of AYT handshakes by result",
		},
		[]string{resultLabel},
	)

	agentCommandCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_command_total",
			Help: "Number of commands served by monitor agent",
		},
		[]string{commandLabel, statusLabel},
	)

	agentConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_connections_current",
		Help: "Number of controller connections served by monitor agent right now",
	})
)
