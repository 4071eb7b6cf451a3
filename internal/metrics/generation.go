package metrics

import "github.com/prometheus/client_golang/prometheus"

// Generation Prometheus metrics.
var (
	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Name:      "generation_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"provider", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appforge",
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	GenerationRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Name:      "generation_retries_total",
			Help:      "Total retries by error class",
		},
		[]string{"provider", "class"},
	)

	GenerationTokensEstimated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Name:      "generation_tokens_estimated_total",
			Help:      "Estimated tokens charged against the per-minute budget",
		},
		[]string{"provider"},
	)

	RateLimitWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "appforge",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent blocked in rate-limit admission",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
	)

	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Name:      "response_cache_total",
			Help:      "Response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var genMetricsRegistered bool

// RegisterGenerationMetrics registers Prometheus metrics. Must be called once from main.
func RegisterGenerationMetrics() {
	if genMetricsRegistered {
		return
	}
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationRequestDuration)
	prometheus.MustRegister(GenerationRetriesTotal)
	prometheus.MustRegister(GenerationTokensEstimated)
	prometheus.MustRegister(RateLimitWaitSeconds)
	prometheus.MustRegister(ResponseCacheTotal)
	genMetricsRegistered = true
}
