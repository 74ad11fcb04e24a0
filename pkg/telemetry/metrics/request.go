package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/callisto/pkg/config"
)

// RequestMetrics tracks requests run by the scheduler.
//
// Metrics:
//   - callisto_interpreter_requests_total: completed requests by section and rcode
//   - callisto_interpreter_request_duration_seconds: request duration histogram
//   - callisto_interpreter_request_yields_total: yields by section
//   - callisto_interpreter_requests_in_flight: requests submitted and not finished
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	yieldsTotal     *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

// NewRequestMetrics creates and registers request metrics.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of requests completed",
			},
			[]string{"section", "rcode"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of requests from submission to completion in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"section"},
		),

		yieldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_yields_total",
				Help:      "Total number of times requests yielded",
			},
			[]string{"section"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_in_flight",
				Help:      "Number of requests submitted and not yet finished",
			},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration, rm.yieldsTotal, rm.inFlight)
	return rm
}
