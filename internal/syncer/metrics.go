package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// deliveriesTotal counts send attempts by result (success, failure)
	// and submissions skipped because they were empty (skipped).
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "annotie_sync_deliveries_total",
		Help: "Change-set deliveries by result",
	}, []string{"result"})

	// sendDuration tracks transport latency per attempt
	sendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "annotie_sync_send_duration_seconds",
		Help:    "Change-set send duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	// pendingDeliveries is the number of queued change-sets across syncers
	pendingDeliveries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "annotie_sync_pending",
		Help: "Change-sets waiting to be delivered",
	})
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultSkipped = "skipped"
)
