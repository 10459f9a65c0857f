package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for billing spans
const TracerName = "github.com/fieldops/backend/billing"

// Span attribute keys for billing spans
const (
	SpanAttrEventID     = attribute.Key("billing.event_id")
	SpanAttrEventType   = attribute.Key("billing.event_type")
	SpanAttrAccount     = attribute.Key("billing.account")
	SpanAttrInvoiceID   = attribute.Key("billing.invoice_id")
	SpanAttrPlanID      = attribute.Key("billing.payment_plan_id")
	SpanAttrDuplicate   = attribute.Key("billing.duplicate")
	SpanAttrIgnored     = attribute.Key("billing.ignored")
	SpanAttrSessionID   = attribute.Key("billing.checkout_session_id")
	SpanAttrIdempotency = attribute.Key("billing.idempotency_key")
)

// StartSpan starts an internal span from the global tracer provider.
// The caller must end the span.
//
//	ctx, span := telemetry.StartSpan(ctx, "billing.webhook.process", telemetry.SpanAttrEventID.String(id))
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpanWithKind(ctx, name, trace.SpanKindInternal, attrs...)
}

// StartSpanWithKind starts a span of the given kind, for example client spans
// around processor API calls.
func StartSpanWithKind(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetTraceID returns the trace ID of the span in ctx, or an empty string
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
