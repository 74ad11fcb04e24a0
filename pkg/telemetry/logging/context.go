package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// SectionKey is the context key for the policy section being run.
	SectionKey contextKey = "section"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithSection adds a policy section name to the context.
func WithSection(ctx context.Context, section string) context.Context {
	return context.WithValue(ctx, SectionKey, section)
}

// GetSection retrieves the policy section name from the context.
func GetSection(ctx context.Context) string {
	if section, ok := ctx.Value(SectionKey).(string); ok {
		return section
	}
	return ""
}

// contextFields returns the log fields stored in ctx. Trace and span ids
// come from the active span.
func contextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, slog.String("request_id", requestID))
	}
	if section := GetSection(ctx); section != "" {
		fields = append(fields, slog.String("section", section))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()))
	}
	return fields
}

// contextHandler adds context fields to every record logged with a
// context.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if fields := contextFields(ctx); len(fields) > 0 {
			r = r.Clone()
			r.AddAttrs(fields...)
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
