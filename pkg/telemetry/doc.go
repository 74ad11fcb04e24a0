// Package telemetry groups callisto's observability packages:
//
//   - logging: slog loggers with context fields and secret redaction
//   - metrics: Prometheus metrics, including the interpreter observer
//   - tracing: OpenTelemetry spans for requests and policy compiles
package telemetry
