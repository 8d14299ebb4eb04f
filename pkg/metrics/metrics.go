package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_executions_total",
			Help: "Total number of job execution attempts",
		},
		[]string{"job_type", "result"}, // result: completed, retried, failed, cancelled
	)

	JobExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_execution_duration_seconds",
			Help:    "Handler execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"job_type"},
	)

	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_jobs",
			Help: "Number of jobs currently tracked by the engine",
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_cache_requests_total",
			Help: "Cache decorator lookups by outcome",
		},
		[]string{"outcome"}, // outcome: hit, miss
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "integration_sync_duration_seconds",
			Help:    "Per-provider sync duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"provider", "status"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total notifications created from provider events",
		},
		[]string{"source"},
	)
)

func RecordJobExecution(jobType, result string) {
	JobExecutions.WithLabelValues(jobType, result).Inc()
}

func RecordJobDuration(jobType string, d time.Duration) {
	JobExecutionDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

func RecordCacheRequest(outcome string) {
	CacheRequests.WithLabelValues(outcome).Inc()
}

func RecordSyncDuration(provider, status string, d time.Duration) {
	SyncDuration.WithLabelValues(provider, status).Observe(d.Seconds())
}

func IncrementNotificationsCreated(source string) {
	NotificationsCreated.WithLabelValues(source).Inc()
}
