// Package tracing provides OpenTelemetry tracing for callisto.
//
// The scheduler opens one span per request ("callisto.request") and the
// interpreter adds events to the active span when load-balance groups
// select children or redundant groups fail over. Spans are exported over
// OTLP gRPC.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, tracing.SpanRequest)
//	tracing.SetRequestAttributes(span, req.ID, "authorize")
//	defer span.End()
//
// When tracing is disabled Start returns non-recording spans.
//
// # Context from requests
//
// Request documents may carry a W3C traceparent; ExtractFromMap continues
// that trace instead of starting a new one.
package tracing
