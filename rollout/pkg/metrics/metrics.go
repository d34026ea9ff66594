package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RolloutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramp_rollouts_total",
			Help: "Total number of finished rollouts by outcome",
		},
		[]string{"strategy", "outcome"},
	)

	RolloutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ramp_rollout_duration_seconds",
			Help:    "Wall time of a rollout from start to terminal phase",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~2.8h
		},
		[]string{"strategy"},
	)

	HealthSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramp_health_samples_total",
			Help: "Total number of candidate health samples",
		},
		[]string{"workload", "result"}, // result: healthy/unhealthy
	)

	SuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ramp_success_rate_percent",
			Help: "Last computed cumulative success rate of the active rollout",
		},
		[]string{"workload"},
	)

	BackendRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ramp_backend_retries_total",
			Help: "Total number of retried orchestrator calls",
		},
	)

	ManualInterventionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ramp_manual_interventions_total",
			Help: "Total number of rollouts that ended needing manual intervention",
		},
	)
)
