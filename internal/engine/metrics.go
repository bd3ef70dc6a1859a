package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values for ordersProcessedTotal.
const (
	resultSolved    = "solved"
	resultRecorded  = "recorded"
	resultDuplicate = "duplicate"
	resultInvalid   = "invalid"
	resultError     = "error"
)

var (
	// ordersProcessedTotal counts orders by outcome
	ordersProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimelab_orders_processed_total",
		Help: "Orders processed by the resolution engine, by result",
	}, []string{"result"})

	// casesSolvedTotal counts SOLVED transitions
	casesSolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crimelab_cases_solved_total",
		Help: "Cases transitioned to solved",
	})

	// orderDuration tracks end-to-end ProcessOrder latency
	orderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crimelab_order_duration_seconds",
		Help:    "Order processing duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})
)
