package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the mutation kernel.
type Metrics struct {
	MutationsCommitted prometheus.Counter
	MutationsRejected  *prometheus.CounterVec
	MutationErrors     *prometheus.CounterVec
	VersionConflicts   prometheus.Counter
	IdempotentReplays  prometheus.Counter
	RateLimited        prometheus.Counter
	CommitDuration     prometheus.Histogram
	OutboxDispatched   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		MutationsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fiat_mutations_committed_total",
			Help: "Total number of mutations committed",
		}),
		MutationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiat_mutations_rejected_total",
			Help: "Total number of mutations rejected, by error code",
		}, []string{"code"}),
		MutationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiat_mutation_errors_total",
			Help: "Total number of mutations failed on infrastructure, by retryable reason",
		}, []string{"reason"}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fiat_version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts",
		}),
		IdempotentReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fiat_idempotent_replays_total",
			Help: "Total number of create mutations answered from the idempotency store",
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fiat_rate_limited_total",
			Help: "Total number of mutation requests rejected by the rate limiter",
		}),
		CommitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fiat_commit_duration_seconds",
			Help:    "Latency of the atomic commit transaction",
			Buckets: prometheus.DefBuckets,
		}),
		OutboxDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fiat_outbox_dispatched_total",
			Help: "Total number of outbox intents published by the dispatcher",
		}),
	}
}
