package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rissa",
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "Time spent answering dataset queries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	queryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rissa",
		Subsystem: "query",
		Name:      "errors_total",
		Help:      "Failed dataset queries by endpoint and error kind.",
	}, []string{"endpoint", "kind"})
)
