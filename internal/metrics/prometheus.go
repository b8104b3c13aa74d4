package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts queue jobs by kind and outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_jobs_processed_total",
			Help: "Total number of queue jobs processed",
		},
		[]string{"queue", "outcome"},
	)

	// JobDuration tracks end-to-end job processing time in seconds.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbiter_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"queue"},
	)

	// SubmissionsJudged counts judged submissions by final verdict.
	SubmissionsJudged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_submissions_judged_total",
			Help: "Total number of judged submissions by verdict",
		},
		[]string{"verdict"},
	)

	// WorkersActive tracks the number of workers currently processing a job.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbiter_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// SandboxFailures counts sandbox transport failures (not user code errors).
	SandboxFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbiter_sandbox_failures_total",
			Help: "Total number of sandbox transport failures",
		},
	)
)
