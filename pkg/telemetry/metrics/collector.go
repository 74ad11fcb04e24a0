package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/interpreter"
)

// DefaultMaxCardinality bounds the label sets of group-labelled metrics.
const DefaultMaxCardinality = 1000

// Collector owns every callisto metric.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	interpreterMetrics *InterpreterMetrics
	requestMetrics     *RequestMetrics
	policyMetrics      *PolicyMetrics
}

// NewCollector creates a collector and registers its metrics with
// registry. A nil registry gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = append([]float64(nil), config.DefaultRequestDurationBuckets...)
	}

	limiter := NewCardinalityLimiter(DefaultMaxCardinality)
	return &Collector{
		config:             cfg,
		registry:           registry,
		interpreterMetrics: NewInterpreterMetrics(cfg, registry, limiter),
		requestMetrics:     NewRequestMetrics(cfg, registry),
		policyMetrics:      NewPolicyMetrics(cfg, registry),
	}
}

// Observer returns the interpreter observer feeding this collector. When
// metrics are disabled it discards every event.
func (c *Collector) Observer() interpreter.Observer {
	if !c.config.Enabled {
		return discard{}
	}
	return c.interpreterMetrics
}

// RequestStarted records a request entering the scheduler.
func (c *Collector) RequestStarted() {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.inFlight.Inc()
}

// RequestYielded records a request suspending.
func (c *Collector) RequestYielded(section string) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.yieldsTotal.WithLabelValues(section).Inc()
}

// RequestFinished records a completed request. rcode is the final result
// code name.
func (c *Collector) RequestFinished(section, rcode string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.inFlight.Dec()
	c.requestMetrics.requestsTotal.WithLabelValues(section, rcode).Inc()
	c.requestMetrics.requestDuration.WithLabelValues(section).Observe(duration.Seconds())
}

// RecordPolicyReload records a policy compile. sections is the number of
// sections in the active program.
func (c *Collector) RecordPolicyReload(success bool, sections int) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordReload(success, sections)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

type discard struct{}

func (discard) FramePushed(interpreter.Type)       {}
func (discard) LoadBalanceSelected(string, string) {}
func (discard) RedundantFailover(string)           {}
func (discard) SignalDelivered(interpreter.Signal) {}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or still fits under
// the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
