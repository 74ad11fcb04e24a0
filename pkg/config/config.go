package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for callisto.
type Config struct {
	// Interpreter contains interpreter limits.
	Interpreter InterpreterConfig `yaml:"interpreter"`

	// Dictionary selects the attribute dictionary.
	Dictionary DictionaryConfig `yaml:"dictionary"`

	// Policy contains the policy source and reload settings.
	Policy PolicyConfig `yaml:"policy"`

	// Modules maps module instance names to their configuration.
	Modules map[string]ModuleConfig `yaml:"modules"`

	// Scheduler contains the request worker pool settings.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// InterpreterConfig contains interpreter limits.
type InterpreterConfig struct {
	// MaxStackDepth is the maximum number of frames per request.
	// Default: 256
	MaxStackDepth int `yaml:"max_stack_depth"`
}

// DictionaryConfig selects the attribute dictionary.
type DictionaryConfig struct {
	// File is a YAML dictionary. Empty uses the built-in dictionary.
	File string `yaml:"file"`
}

// PolicyConfig contains the policy source and reload settings.
type PolicyConfig struct {
	// File is the HCL policy file.
	// Default: "./policy.hcl"
	File string `yaml:"file"`

	// Watch recompiles the policy when the file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is how long to wait for further changes before recompiling.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// ExecTimeout bounds exec() calls in key templates.
	// Default: 2s
	ExecTimeout time.Duration `yaml:"exec_timeout"`
}

// ModuleConfig configures one module instance.
type ModuleConfig struct {
	// Type is the registered module type, e.g. "sessions".
	Type string `yaml:"type"`

	// Settings is decoded by the module type.
	Settings yaml.Node `yaml:"settings"`
}

// SchedulerConfig contains the request worker pool settings.
type SchedulerConfig struct {
	// Workers is the number of goroutines advancing requests.
	// Default: 4
	Workers int `yaml:"workers"`

	// QueueSize is the capacity of the run queue.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`

	// RequestTimeout is delivered to requests as a timeout signal.
	// Zero disables the timeout.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// Redact hides secrets such as User-Password in logs.
	// Default: true
	Redact *bool `yaml:"redact"`

	// RedactKeys are additional attribute keys to redact.
	RedactKeys []string `yaml:"redact_keys"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Address is the listen address of the metrics endpoint.
	// Default: "127.0.0.1:9464"
	Address string `yaml:"address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "callisto"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "interpreter"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "callisto"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// RedactEnabled reports whether log redaction is on.
func (c LoggingConfig) RedactEnabled() bool {
	return c.Redact == nil || *c.Redact
}
