package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRequest = "callisto.request"
	SpanCompile = "callisto.policy.compile"
)

// Attribute keys.
const (
	AttrRequestID = attribute.Key("callisto.request.id")
	AttrSection   = attribute.Key("callisto.section")
	AttrRcode     = attribute.Key("callisto.rcode")
	AttrYields    = attribute.Key("callisto.yields")
	AttrPolicy    = attribute.Key("callisto.policy.file")
	AttrSections  = attribute.Key("callisto.policy.sections")
)

// SetRequestAttributes tags a request span.
func SetRequestAttributes(span trace.Span, requestID, section string) {
	span.SetAttributes(AttrRequestID.String(requestID), AttrSection.String(section))
}

// SetResultAttributes records how a request finished.
func SetResultAttributes(span trace.Span, rcode string, yields int) {
	span.SetAttributes(AttrRcode.String(rcode), AttrYields.Int(yields))
}

// SetCompileAttributes tags a policy compile span.
func SetCompileAttributes(span trace.Span, file string, sections int) {
	span.SetAttributes(AttrPolicy.String(file), AttrSections.Int(sections))
}

// ExtractFromMap continues the trace described by carrier (traceparent,
// tracestate) when there is one.
func ExtractFromMap(ctx context.Context, carrier map[string]string) context.Context {
	if len(carrier) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}

// InjectToMap writes the trace context of ctx into carrier.
func InjectToMap(ctx context.Context, carrier map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(carrier))
}
