package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	tenantIDKey  contextKey = "tenant_id"
	eventIDKey   contextKey = "event_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id and attaches it to the context logger
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withField(ctx, requestIDKey, requestID)
}

// WithTenantID stores the tenant id and attaches it to the context logger
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return withField(ctx, tenantIDKey, tenantID)
}

// WithEventID stores the processor event id and attaches it to the context logger
func WithEventID(ctx context.Context, eventID string) context.Context {
	return withField(ctx, eventIDKey, eventID)
}

func withField(ctx context.Context, key contextKey, value string) context.Context {
	ctx = context.WithValue(ctx, key, value)
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		ctx = WithContext(ctx, logger.With(zap.String(string(key), value)))
	}
	return ctx
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// GetTenantID retrieves tenant ID from context
func GetTenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}

// GetEventID retrieves the processor event id from context
func GetEventID(ctx context.Context) string {
	v, _ := ctx.Value(eventIDKey).(string)
	return v
}

// L returns the context logger with trace_id and span_id added when the
// context carries a valid span.
//
//	logger.L(ctx).Info("Invoice sent", zap.String("invoice_id", id))
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}

// WithTraceContext adds trace_id and span_id to the logger from the context's span
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
