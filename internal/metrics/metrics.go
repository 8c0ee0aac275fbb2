package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "pageforge"

var (
	TasksAcceptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_accepted_total",
			Help:      "Total number of generation requests accepted for processing.",
		},
	)

	TasksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of requests rejected before processing, labeled by reason.",
		},
		[]string{"reason"},
	)

	TasksAbandonedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_abandoned_total",
			Help:      "Total number of accepted tasks abandoned after a fatal pipeline error.",
		},
	)

	GenerationFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_fallback_total",
			Help:      "Total number of generations that served the fallback artifact, labeled by cause.",
		},
		[]string{"cause"},
	)

	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of publish attempts, labeled by resolved mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	CallbackDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_deliveries_total",
			Help:      "Total number of evaluation callback deliveries, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	TaskDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "End-to-end latency from acceptance to pipeline completion (seconds).",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksAcceptedTotal,
		TasksRejectedTotal,
		TasksAbandonedTotal,
		GenerationFallbackTotal,
		PublishTotal,
		CallbackDeliveriesTotal,
		TaskDurationSeconds,
	)
}
