package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "der_dashboard"

// Prometheus metrics
var (
	StoreEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_entities",
			Help:      "Number of entities held in the model store",
		},
		[]string{"type"},
	)
	StoreMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Model store mutations by type and operation",
		},
		[]string{"type", "op"},
	)

	PollerTrackedIDs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_tracked_ids",
			Help:      "Ids awaiting job completion",
		},
		[]string{"type"},
	)
	PollerFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poller_fetches_total",
			Help:      "Batched status fetches by type and result (ok, error, skipped)",
		},
		[]string{"type", "result"},
	)
	PollerFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poller_fetch_duration_seconds",
			Help:      "Duration of batched status fetches",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_mutations_total",
			Help:      "Optimistic mutations by type, op and outcome",
		},
		[]string{"type", "op", "outcome"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications raised by kind",
		},
		[]string{"kind"},
	)

	BEORequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "beo_requests_total",
			Help:      "Requests sent to the BEO by method and status class",
		},
		[]string{"method", "status"},
	)
)
