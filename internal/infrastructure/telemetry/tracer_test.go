package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, Config{ServiceName: "test-service"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1.0, "ParentBased{root:AlwaysOnSampler"},
		{2.0, "ParentBased{root:AlwaysOnSampler"},
		{0, "ParentBased{root:AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, samplerFor(tt.ratio).Description(), tt.want)
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("fieldops-billing")
	require.NoError(t, err)

	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" {
			found = true
			assert.Equal(t, "fieldops-billing", kv.Value.AsString())
		}
	}
	assert.True(t, found)
}

func TestStartSpan(t *testing.T) {
	tp, rec := newRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := StartSpan(context.Background(), "billing.webhook.process", SpanAttrEventID.String("evt_1"))
	assert.NotEmpty(t, GetTraceID(ctx))
	RecordError(span, errors.New("boom"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "billing.webhook.process", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	v, ok := spanAttr(spans[0], SpanAttrEventID)
	require.True(t, ok)
	assert.Equal(t, "evt_1", v.AsString())
}

func TestRecordError_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(nil, errors.New("x"))
		_, span := sdktrace.NewTracerProvider().Tracer("t").Start(context.Background(), "s")
		RecordError(span, nil)
		span.End()
	})
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
