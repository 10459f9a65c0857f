package telemetry

import (
	"context"
	"testing"
	"time"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestReconciliationMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewReconciliationMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	const evt = "payment_intent.succeeded"

	m.EventReceived(ctx, evt)
	m.EventReceived(ctx, evt)
	m.EventProcessed(ctx, evt, 20*time.Millisecond)
	m.EventDuplicate(ctx, evt, appbilling.DuplicateLayerCache)
	m.EventIgnored(ctx, "customer.created", appbilling.IgnoreReasonUnsupported)
	m.EventFailed(ctx, evt)
	m.PaymentRecorded(ctx, billing.PaymentMethodProcessor)

	got := collect(t, reader)

	assert.Equal(t, int64(2), counterValue(t, got["billing_webhook_events_received_total"], AttrEventType.String(evt)))
	assert.Equal(t, int64(1), counterValue(t, got["billing_webhook_events_processed_total"], AttrEventType.String(evt)))
	assert.Equal(t, int64(1), counterValue(t, got["billing_webhook_events_duplicate_total"],
		AttrEventType.String(evt), AttrLayer.String(appbilling.DuplicateLayerCache)))
	assert.Equal(t, int64(1), counterValue(t, got["billing_webhook_events_ignored_total"],
		AttrEventType.String("customer.created"), AttrReason.String(appbilling.IgnoreReasonUnsupported)))
	assert.Equal(t, int64(1), counterValue(t, got["billing_webhook_events_failed_total"], AttrEventType.String(evt)))
	assert.Equal(t, int64(1), counterValue(t, got["billing_payments_recorded_total"],
		AttrPaymentMethod.String(string(billing.PaymentMethodProcessor))))

	hist, ok := got["billing_webhook_processing_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 0.02, hist.DataPoints[0].Sum, 0.0001)
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}
