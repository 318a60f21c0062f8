// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	RiskAssessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Completed risk assessments by final level and decision source",
		},
		[]string{"risk_level", "source"},
	)

	RiskModelFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_model_fallbacks_total",
			Help: "Assessments that fell back to rule-only scoring",
		},
		[]string{"reason"},
	)

	RiskAssessmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_assessment_duration_seconds",
			Help:    "End-to-end duration of a single assessment",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"source"},
	)

	RiskModelCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_model_cache_hits_total",
			Help: "Prediction cache hits",
		},
	)

	RiskModelCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_model_cache_misses_total",
			Help: "Prediction cache misses",
		},
	)

	AuditRecordFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_audit_record_failures_total",
			Help: "Assessments that could not be written to an audit sink",
		},
		[]string{"sink"},
	)

	CareTeamAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_care_team_alerts_total",
			Help: "Care-team alerts by channel and outcome",
		},
		[]string{"channel", "status"},
	)
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route",
		},
		[]string{"method", "route"},
	)
)
