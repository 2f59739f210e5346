package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not domain-specific)
type Metrics struct {
	// Gateway metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimitWait   *prometheus.HistogramVec

	// Circuit breaker metrics
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	// Retry metrics
	RetryAttempts *prometheus.CounterVec

	// Router metrics
	FanoutDomains *prometheus.HistogramVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bioquery",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total upstream requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bioquery",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Upstream request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		RateLimitWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bioquery",
				Subsystem: "ratelimit",
				Name:      "wait_seconds",
				Help:      "Time spent waiting for a rate limit token",
				Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bioquery",
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"endpoint"},
		),

		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bioquery",
				Subsystem: "breaker",
				Name:      "transitions_total",
				Help:      "Total circuit breaker state transitions",
			},
			[]string{"endpoint", "to"},
		),

		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bioquery",
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Total retry attempts beyond the first try",
			},
			[]string{"endpoint"},
		),

		FanoutDomains: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bioquery",
				Subsystem: "router",
				Name:      "fanout_domains",
				Help:      "Number of domains dispatched per federated query",
				Buckets:   []float64{1, 2, 3, 4, 5, 8, 12},
			},
			[]string{"mode"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bioquery",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total classified errors by component and class",
			},
			[]string{"component", "class"},
		),
	}
}
