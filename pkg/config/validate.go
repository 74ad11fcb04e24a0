package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "policy.file").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateInterpreter(&cfg.Interpreter)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateModules(cfg.Modules)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateInterpreter(cfg *InterpreterConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxStackDepth < 1 {
		errs = append(errs, FieldError{
			Field:   "interpreter.max_stack_depth",
			Message: "must be at least 1",
		})
	}
	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError
	if cfg.File == "" {
		errs = append(errs, FieldError{
			Field:   "policy.file",
			Message: "policy file is required",
		})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.debounce",
			Message: "debounce cannot be negative",
		})
	}
	if cfg.ExecTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "policy.exec_timeout",
			Message: "exec timeout must be positive",
		})
	}
	return errs
}

var moduleNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// validateModules checks instance names and types. Settings are validated
// by the module types when the instances are created.
func validateModules(mods map[string]ModuleConfig) []FieldError {
	var errs []FieldError
	for name, m := range mods {
		if !moduleNameRe.MatchString(name) {
			errs = append(errs, FieldError{
				Field:   "modules." + name,
				Message: "module names must start with a letter or underscore and contain only letters, digits, '_' and '-'",
			})
		}
		if m.Type == "" {
			errs = append(errs, FieldError{
				Field:   "modules." + name + ".type",
				Message: "module type is required",
			})
		}
		if m.Type == "sessions" {
			errs = append(errs, validatePurgeSchedule(name, &m)...)
		}
	}
	return errs
}

// validatePurgeSchedule catches bad cron expressions before any database
// is opened.
func validatePurgeSchedule(name string, m *ModuleConfig) []FieldError {
	var settings struct {
		PurgeSchedule string `yaml:"purge_schedule"`
	}
	if m.Settings.Kind == 0 || m.Settings.Decode(&settings) != nil || settings.PurgeSchedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(settings.PurgeSchedule); err != nil {
		return []FieldError{{
			Field:   "modules." + name + ".settings.purge_schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", settings.PurgeSchedule, err),
		}}
	}
	return nil
}

func validateScheduler(cfg *SchedulerConfig) []FieldError {
	var errs []FieldError
	if cfg.Workers < 1 {
		errs = append(errs, FieldError{
			Field:   "scheduler.workers",
			Message: "must be at least 1",
		})
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, FieldError{
			Field:   "scheduler.queue_size",
			Message: "must be at least 1",
		})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "scheduler.request_timeout",
			Message: "request timeout cannot be negative",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text' or 'console'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Address == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.address",
				Message: "metrics address is required when metrics are enabled",
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with '/'",
			})
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never' or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	return errs
}
