package telemetry

import (
	"context"
	"time"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"go.opentelemetry.io/otel/metric"
)

// ReconciliationMetrics records webhook reconciliation counters and latency
type ReconciliationMetrics struct {
	received        *Counter
	processed       *Counter
	duplicates      *Counter
	ignored         *Counter
	failed          *Counter
	paymentRecorded *Counter
	duration        *Histogram
}

// NewReconciliationMetrics registers the reconciliation instruments on meter
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	var (
		m   ReconciliationMetrics
		err error
	)
	counters := []struct {
		target      **Counter
		name        string
		description string
	}{
		{&m.received, "billing_webhook_events_received_total", "Verified webhook events received"},
		{&m.processed, "billing_webhook_events_processed_total", "Webhook events committed to the ledger"},
		{&m.duplicates, "billing_webhook_events_duplicate_total", "Redelivered webhook events skipped"},
		{&m.ignored, "billing_webhook_events_ignored_total", "Webhook events acknowledged without effect"},
		{&m.failed, "billing_webhook_events_failed_total", "Webhook events whose transaction rolled back"},
		{&m.paymentRecorded, "billing_payments_recorded_total", "Payments applied to invoices"},
	}
	for _, c := range counters {
		if *c.target, err = NewCounter(meter, c.name, c.description, "{event}"); err != nil {
			return nil, err
		}
	}

	m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "billing_webhook_processing_duration_seconds",
		Description: "Time spent applying a webhook event inside its transaction",
		Unit:        "s",
		Boundaries:  WebhookDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *ReconciliationMetrics) EventReceived(ctx context.Context, eventType string) {
	m.received.Inc(ctx, AttrEventType.String(eventType))
}

func (m *ReconciliationMetrics) EventProcessed(ctx context.Context, eventType string, d time.Duration) {
	m.processed.Inc(ctx, AttrEventType.String(eventType))
	m.duration.RecordDuration(ctx, d, AttrEventType.String(eventType))
}

func (m *ReconciliationMetrics) EventDuplicate(ctx context.Context, eventType, layer string) {
	m.duplicates.Inc(ctx, AttrEventType.String(eventType), AttrLayer.String(layer))
}

func (m *ReconciliationMetrics) EventIgnored(ctx context.Context, eventType, reason string) {
	m.ignored.Inc(ctx, AttrEventType.String(eventType), AttrReason.String(reason))
}

func (m *ReconciliationMetrics) EventFailed(ctx context.Context, eventType string) {
	m.failed.Inc(ctx, AttrEventType.String(eventType))
}

func (m *ReconciliationMetrics) PaymentRecorded(ctx context.Context, method billing.PaymentMethod) {
	m.paymentRecorded.Inc(ctx, AttrPaymentMethod.String(string(method)))
}

var _ appbilling.ReconciliationRecorder = (*ReconciliationMetrics)(nil)
