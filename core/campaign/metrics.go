package campaign

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_runs_total",
			Help: "Number of inputs sent to target by result",
		},
		[]string{"result"},
	)

	reconnectCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_reconnects_total",
			Help: "Number of reconnect attempts to monitor",
		},
	)

	triggerTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campaign_trigger_duration_seconds",
			Help:    "Latency of one CTD round trip as seen by campaign",
			Buckets: prometheus.DefBuckets,
		},
	)
)
