package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	observationsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rissa",
		Subsystem: "ingest",
		Name:      "observations_total",
		Help:      "Observations written through the ingest endpoint.",
	}, []string{"dataset"})

	ingestRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rissa",
		Subsystem: "ingest",
		Name:      "rejected_total",
		Help:      "Ingest requests rejected, by reason.",
	}, []string{"dataset", "reason"})
)
