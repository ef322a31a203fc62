package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type executorMetrics struct {
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
	outputRows prometheus.Counter
}

func newExecutorMetrics(reg prometheus.Registerer) *executorMetrics {
	return &executorMetrics{
		executions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "metrics_pipeline",
			Name:      "executions_total",
			Help:      "Total number of transformation executions by outcome.",
		}, []string{"status"}),
		duration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "metrics_pipeline",
			Name:      "execution_duration_seconds",
			Help:      "Time spent registering, planning and collecting one transformation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		outputRows: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "metrics_pipeline",
			Name:      "output_rows_total",
			Help:      "Total number of rows produced by executions.",
		}),
	}
}

type publisherMetrics struct {
	published *prometheus.CounterVec
	attempts  *prometheus.CounterVec
}

func newPublisherMetrics(reg prometheus.Registerer) *publisherMetrics {
	return &publisherMetrics{
		published: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "metrics_pipeline",
			Name:      "published_rows_total",
			Help:      "Total number of rows published by backend.",
		}, []string{"backend"}),
		attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "metrics_pipeline",
			Name:      "publish_attempts_total",
			Help:      "Total number of publish attempts by backend and outcome.",
		}, []string{"backend", "status"}),
	}
}
