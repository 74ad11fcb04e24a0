package config

import "time"

// Default values for configuration fields.
const (
	// Interpreter defaults
	DefaultMaxStackDepth = 256

	// Policy defaults
	DefaultPolicyFile        = "./policy.hcl"
	DefaultPolicyDebounce    = 100 * time.Millisecond
	DefaultPolicyExecTimeout = 2 * time.Second

	// Scheduler defaults
	DefaultSchedulerWorkers   = 4
	DefaultSchedulerQueueSize = 1024
	DefaultRequestTimeout     = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsAddress     = "127.0.0.1:9464"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "callisto"
	DefaultMetricsSubsystem   = "interpreter"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "callisto"
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultRequestDurationBuckets are the request duration histogram buckets.
var DefaultRequestDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// NewDefault returns a configuration with every default applied.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.Interpreter.MaxStackDepth == 0 {
		cfg.Interpreter.MaxStackDepth = DefaultMaxStackDepth
	}

	if cfg.Policy.File == "" {
		cfg.Policy.File = DefaultPolicyFile
	}
	if cfg.Policy.Debounce == 0 {
		cfg.Policy.Debounce = DefaultPolicyDebounce
	}
	if cfg.Policy.ExecTimeout == 0 {
		cfg.Policy.ExecTimeout = DefaultPolicyExecTimeout
	}

	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = DefaultSchedulerWorkers
	}
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = DefaultSchedulerQueueSize
	}
	if cfg.Scheduler.RequestTimeout == 0 {
		cfg.Scheduler.RequestTimeout = DefaultRequestTimeout
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	if t.Metrics.Address == "" {
		t.Metrics.Address = DefaultMetricsAddress
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.RequestDurationBuckets) == 0 {
		t.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
}
