// Package jobmetrics instruments background task execution.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded on stockline_jobs_total.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	// StatusDropped marks failures that will not be retried.
	StatusDropped = "dropped"
)

// Metrics exposes Prometheus collectors for background jobs. A nil *Metrics is
// a valid no-op.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	enqueued *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// Prometheus registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() { defaultMetrics = register(prometheus.DefaultRegisterer) })
	return defaultMetrics
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockline_jobs_total",
			Help: "Job executions partitioned by task type and outcome.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockline_jobs_failures_total",
			Help: "Failed job executions, retried or not.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockline_job_duration_seconds",
			Help:    "Job execution time in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockline_jobs_enqueued_total",
			Help: "Tasks enqueued by the API process.",
		}, []string{"job"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.enqueued)
	return m
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	if err == nil {
		m.runs.WithLabelValues(t.job, StatusSuccess).Inc()
		return nil
	}
	m.failures.WithLabelValues(t.job).Inc()
	status := StatusFailure
	if errors.Is(err, asynq.SkipRetry) {
		status = StatusDropped
	}
	m.runs.WithLabelValues(t.job, status).Inc()
	return err
}

// Enqueued counts tasks submitted by the API process.
func (m *Metrics) Enqueued(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.enqueued.WithLabelValues(job).Add(float64(count))
}
