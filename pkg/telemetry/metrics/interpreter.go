package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/interpreter"
)

// InterpreterMetrics implements interpreter.Observer.
//
// Metrics:
//   - callisto_interpreter_frames_pushed_total: frames by instruction type
//   - callisto_interpreter_loadbalance_selections_total: selections by group and policy
//   - callisto_interpreter_redundant_failovers_total: failovers by group
//   - callisto_interpreter_signals_total: signals by name
type InterpreterMetrics struct {
	framesPushed       *prometheus.CounterVec
	selections         *prometheus.CounterVec
	redundantFailovers *prometheus.CounterVec
	signals            *prometheus.CounterVec

	limiter *CardinalityLimiter
}

// NewInterpreterMetrics creates and registers interpreter metrics.
func NewInterpreterMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry, limiter *CardinalityLimiter) *InterpreterMetrics {
	im := &InterpreterMetrics{
		framesPushed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "frames_pushed_total",
				Help:      "Total number of interpreter frames pushed",
			},
			[]string{"type"},
		),

		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "loadbalance_selections_total",
				Help:      "Total number of load-balance child selections",
			},
			[]string{"group", "policy"},
		),

		redundantFailovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "redundant_failovers_total",
				Help:      "Total number of redundant group failovers to the next child",
			},
			[]string{"group"},
		),

		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "signals_total",
				Help:      "Total number of signals delivered to requests",
			},
			[]string{"signal"},
		),

		limiter: limiter,
	}

	registry.MustRegister(im.framesPushed, im.selections, im.redundantFailovers, im.signals)
	return im
}

// FramePushed implements interpreter.Observer.
func (im *InterpreterMetrics) FramePushed(kind interpreter.Type) {
	im.framesPushed.WithLabelValues(kind.String()).Inc()
}

// LoadBalanceSelected implements interpreter.Observer.
func (im *InterpreterMetrics) LoadBalanceSelected(group, policy string) {
	im.selections.WithLabelValues(im.groupLabel(group), policy).Inc()
}

// RedundantFailover implements interpreter.Observer.
func (im *InterpreterMetrics) RedundantFailover(group string) {
	im.redundantFailovers.WithLabelValues(im.groupLabel(group)).Inc()
}

// SignalDelivered implements interpreter.Observer.
func (im *InterpreterMetrics) SignalDelivered(sig interpreter.Signal) {
	im.signals.WithLabelValues(sig.String()).Inc()
}

func (im *InterpreterMetrics) groupLabel(group string) string {
	if !im.limiter.Allow(group) {
		return "other"
	}
	return group
}
