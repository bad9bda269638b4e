package infodb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	savedCrashCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saved_crashes_total",
			Help: "Total count of unique crashes saved to disk",
		},
	)

	duplicateCrashCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicate_crashes_total",
			Help: "Total count of crashes on already known inputs",
		},
	)

	storedCrashes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stored_crashes",
			Help: "Number of crashes in crash dir",
		},
	)

	crashSaveTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crash_saving_duration_seconds",
			Help:    "Latency of crash saving",
			Buckets: prometheus.DefBuckets,
		},
	)
)
