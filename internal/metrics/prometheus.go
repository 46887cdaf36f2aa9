package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsSubmitted counts sweep runs accepted by the API.
	SweepsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsweep_sweeps_submitted_total",
			Help: "Total number of sweep runs accepted by the API",
		},
		[]string{"target"},
	)

	// SweepsTotal counts the total number of sweep runs processed by target and status.
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsweep_sweeps_total",
			Help: "Total number of sweep runs processed",
		},
		[]string{"target", "status"},
	)

	// SweepDuration tracks the end-to-end duration of sweep runs in seconds.
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qsweep_sweep_duration_seconds",
			Help:    "Duration of sweep runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27min
		},
		[]string{"target"},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qsweep_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// JobsCreated counts remote jobs created by samplers.
	JobsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsweep_sampler_jobs_created_total",
			Help: "Total number of remote jobs created by samplers",
		},
		[]string{"target"},
	)

	// ResultsConverted counts job results converted to canonical results, by variant.
	ResultsConverted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsweep_sampler_results_converted_total",
			Help: "Total number of job results converted, by result variant",
		},
		[]string{"variant"},
	)

	// APIRequests counts requests made to the remote quantum API.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsweep_remote_api_requests_total",
			Help: "Total number of requests to the remote quantum API",
		},
		[]string{"operation", "code"},
	)

	// APIRetries counts retried remote API requests.
	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsweep_remote_api_retries_total",
			Help: "Total number of retried requests to the remote quantum API",
		},
		[]string{"operation"},
	)
)
