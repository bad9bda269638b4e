package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_events_total",
			Help: "Number of connector and campaign events by kind",
		},
		[]string{"kind"},
	)

	uniqueCrashCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unique_crashes_total",
			Help: "Number of crashes on never seen inputs",
		},
	)

	droppedEventCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropped_events_total",
			Help: "Number of events lost after sink retries",
		},
	)
)
