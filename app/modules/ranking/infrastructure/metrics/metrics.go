package rankingmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "photoseason"

// RankingMetrics records outcomes of the ranking jobs.
type RankingMetrics interface {
	RecordJobAttempt(ctx context.Context, job string)
	RecordJobSuccess(ctx context.Context, job string)
	RecordJobFailure(ctx context.Context, job string)
	RecordJobSkipped(ctx context.Context, job, reason string)
	RecordJobDuration(ctx context.Context, job string, duration time.Duration)
	RecordEntityFailure(ctx context.Context, job, kind string)
	RecordBatchCommit(ctx context.Context, job string, writes int)
	RecordExperienceGranted(ctx context.Context, amount int)
}

// QueueMetrics records queue infrastructure operations.
type QueueMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// PrometheusMetrics implements RankingMetrics and QueueMetrics.
type PrometheusMetrics struct {
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	entityFailures  *prometheus.CounterVec
	batchCommits    *prometheus.CounterVec
	batchWrites     *prometheus.CounterVec
	experience      prometheus.Counter
	operations      *prometheus.CounterVec
	operationTiming *prometheus.HistogramVec
}

var (
	_ RankingMetrics = (*PrometheusMetrics)(nil)
	_ QueueMetrics   = (*PrometheusMetrics)(nil)
)

// NewPrometheusMetrics registers the ranking collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Ranking job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of ranking job runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600, 1800},
		}, []string{"job"}),
		entityFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_failures_total",
			Help:      "Posts, regions and users skipped after a failure.",
		}, []string{"job", "kind"}),
		batchCommits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_commits_total",
			Help:      "Atomic batch commits issued.",
		}, []string{"job"}),
		batchWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_writes_total",
			Help:      "Document writes carried by committed batches.",
		}, []string{"job"}),
		experience: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experience_granted_total",
			Help:      "Experience points granted at season close.",
		}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_operations_total",
			Help:      "Queue operations by operation, service and outcome.",
		}, []string{"operation", "service", "outcome"}),
		operationTiming: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_operation_duration_seconds",
			Help:      "Queue operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "service"}),
	}
}

func (m *PrometheusMetrics) RecordJobAttempt(ctx context.Context, job string) {
	m.jobRuns.WithLabelValues(job, "attempt").Inc()
}

func (m *PrometheusMetrics) RecordJobSuccess(ctx context.Context, job string) {
	m.jobRuns.WithLabelValues(job, "success").Inc()
}

func (m *PrometheusMetrics) RecordJobFailure(ctx context.Context, job string) {
	m.jobRuns.WithLabelValues(job, "failure").Inc()
}

func (m *PrometheusMetrics) RecordJobSkipped(ctx context.Context, job, reason string) {
	m.jobRuns.WithLabelValues(job, "skipped_"+reason).Inc()
}

func (m *PrometheusMetrics) RecordJobDuration(ctx context.Context, job string, duration time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordEntityFailure(ctx context.Context, job, kind string) {
	m.entityFailures.WithLabelValues(job, kind).Inc()
}

func (m *PrometheusMetrics) RecordBatchCommit(ctx context.Context, job string, writes int) {
	m.batchCommits.WithLabelValues(job).Inc()
	m.batchWrites.WithLabelValues(job).Add(float64(writes))
}

func (m *PrometheusMetrics) RecordExperienceGranted(ctx context.Context, amount int) {
	m.experience.Add(float64(amount))
}

func (m *PrometheusMetrics) RecordOperationAttempt(ctx context.Context, operation, service string) {
	m.operations.WithLabelValues(operation, service, "attempt").Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(ctx context.Context, operation, service string) {
	m.operations.WithLabelValues(operation, service, "success").Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(ctx context.Context, operation, service string) {
	m.operations.WithLabelValues(operation, service, "failure").Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration) {
	m.operationTiming.WithLabelValues(operation, service).Observe(duration.Seconds())
}
