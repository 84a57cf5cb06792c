package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	reviewsSavedTotal     *prometheus.CounterVec
	aggregationRunsTotal  *prometheus.CounterVec
	aggregationDuration   prometheus.Histogram
	submissionsCreated    prometheus.Counter
	publicRejectionsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exposed by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inform_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inform_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inform_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		reviewsSavedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inform_reviews_saved_total",
			Help: "Review revisions persisted, partitioned by draft or submit.",
		}, []string{"kind"})

		aggregationRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inform_aggregation_runs_total",
			Help: "Aggregate recomputations by outcome.",
		}, []string{"outcome"})

		aggregationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inform_aggregation_duration_seconds",
			Help:    "Time spent recomputing a submission aggregate.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		submissionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inform_submissions_created_total",
			Help: "Public submissions accepted.",
		})

		publicRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inform_public_submission_rejections_total",
			Help: "Public submissions rejected before persistence, by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			reviewsSavedTotal,
			aggregationRunsTotal,
			aggregationDuration,
			submissionsCreated,
			publicRejectionsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ReviewsSaved counts persisted review revisions.
func ReviewsSaved() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewsSavedTotal
}

// AggregationRuns counts aggregate recomputations.
func AggregationRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return aggregationRunsTotal
}

// AggregationDuration observes recomputation latency.
func AggregationDuration() prometheus.Histogram {
	RegisterMetrics()
	return aggregationDuration
}

// SubmissionsCreated counts accepted public submissions.
func SubmissionsCreated() prometheus.Counter {
	RegisterMetrics()
	return submissionsCreated
}

// PublicRejections counts public submissions turned away.
func PublicRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return publicRejectionsTotal
}
