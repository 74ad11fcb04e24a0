package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/callisto/pkg/config"
)

// PolicyMetrics tracks policy compiles.
//
// Metrics:
//   - callisto_interpreter_policy_reloads_total: compiles by status
//   - callisto_interpreter_policy_sections: sections in the active program
type PolicyMetrics struct {
	reloadsTotal *prometheus.CounterVec
	sections     prometheus.Gauge
}

// NewPolicyMetrics creates and registers policy metrics.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_reloads_total",
				Help:      "Total number of policy compiles",
			},
			[]string{"status"},
		),

		sections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_sections",
				Help:      "Number of sections in the active policy",
			},
		),
	}

	registry.MustRegister(pm.reloadsTotal, pm.sections)
	return pm
}

// RecordReload records a compile. A failed compile leaves the section
// gauge at the active program's value.
func (pm *PolicyMetrics) RecordReload(success bool, sections int) {
	if !success {
		pm.reloadsTotal.WithLabelValues("error").Inc()
		return
	}
	pm.reloadsTotal.WithLabelValues("success").Inc()
	pm.sections.Set(float64(sections))
}
