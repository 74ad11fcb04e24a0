package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "CALLISTO_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. Unknown fields
// are rejected. The result is not validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := decodeStrict(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention CALLISTO_SECTION_FIELD (e.g., CALLISTO_POLICY_FILE).
// Environment variables always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, os.Getenv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	env := func(name string) string { return getenv(EnvPrefix + name) }

	setInt(env("INTERPRETER_MAX_STACK_DEPTH"), &cfg.Interpreter.MaxStackDepth)

	setString(env("DICTIONARY_FILE"), &cfg.Dictionary.File)

	setString(env("POLICY_FILE"), &cfg.Policy.File)
	setBool(env("POLICY_WATCH"), &cfg.Policy.Watch)
	setDuration(env("POLICY_DEBOUNCE"), &cfg.Policy.Debounce)
	setDuration(env("POLICY_EXEC_TIMEOUT"), &cfg.Policy.ExecTimeout)

	setInt(env("SCHEDULER_WORKERS"), &cfg.Scheduler.Workers)
	setInt(env("SCHEDULER_QUEUE_SIZE"), &cfg.Scheduler.QueueSize)
	setDuration(env("SCHEDULER_REQUEST_TIMEOUT"), &cfg.Scheduler.RequestTimeout)

	setString(env("TELEMETRY_LOGGING_LEVEL"), &cfg.Telemetry.Logging.Level)
	setString(env("TELEMETRY_LOGGING_FORMAT"), &cfg.Telemetry.Logging.Format)

	setBool(env("TELEMETRY_METRICS_ENABLED"), &cfg.Telemetry.Metrics.Enabled)
	setString(env("TELEMETRY_METRICS_ADDRESS"), &cfg.Telemetry.Metrics.Address)

	setBool(env("TELEMETRY_TRACING_ENABLED"), &cfg.Telemetry.Tracing.Enabled)
	setString(env("TELEMETRY_TRACING_ENDPOINT"), &cfg.Telemetry.Tracing.Endpoint)
	if val := env("TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func setString(val string, dst *string) {
	if val != "" {
		*dst = val
	}
}

func setInt(val string, dst *int) {
	if val == "" {
		return
	}
	if i, err := strconv.Atoi(val); err == nil {
		*dst = i
	}
}

func setBool(val string, dst *bool) {
	if val == "" {
		return
	}
	if b, err := strconv.ParseBool(val); err == nil {
		*dst = b
	}
}

func setDuration(val string, dst *time.Duration) {
	if val == "" {
		return
	}
	if d, err := time.ParseDuration(val); err == nil {
		*dst = d
	}
}

// decodeStrict decodes YAML rejecting unknown fields. Module settings are
// raw nodes and accept anything.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
