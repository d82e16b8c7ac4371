package persist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "review",
		Subsystem: "persist",
		Name:      "writes_total",
		Help:      "Blob writes and removals issued to the persistence adapter, by result.",
	}, []string{"key", "op", "result"})

	supersededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "review",
		Subsystem: "persist",
		Name:      "superseded_total",
		Help:      "Pending snapshots dropped because a newer one replaced them before being written.",
	}, []string{"key"})

	writeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "review",
		Subsystem: "persist",
		Name:      "write_duration_seconds",
		Help:      "Latency of persistence adapter writes.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"key"})
)
