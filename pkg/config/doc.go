// Package config provides configuration management for callisto.
//
// Configuration is loaded from a YAML file, completed with defaults and
// validated:
//
//	cfg, err := config.LoadConfig("callisto.yaml")
//
// or, with environment variable overrides applied on top:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("callisto.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CALLISTO_SECTION_FIELD,
// for example:
//
//   - CALLISTO_POLICY_FILE overrides policy.file
//   - CALLISTO_SCHEDULER_WORKERS overrides scheduler.workers
//   - CALLISTO_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Values from the YAML file
//  2. Default values for fields left empty
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Modules
//
// The modules section maps instance names to a module type and a settings
// block. Settings are kept as raw YAML and decoded by the module type
// itself.
//
// # Singleton Pattern
//
// Initialize loads the configuration once at startup; GetConfig returns it.
// Tests should pass explicit *Config values instead.
package config
