package billing

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// EventDecoder verifies and decodes raw processor webhook payloads.
//
// Decode returns billing.ErrSignatureInvalid when the signature does not match
// and billing.ErrUnsupportedEvent for event types the ledger does not react to.
type EventDecoder interface {
	Decode(payload []byte, signature string) (billing.ProcessorEvent, error)
}

// CheckoutRequest describes a hosted checkout to create with the processor
type CheckoutRequest struct {
	// IdempotencyKey makes retried creations return the same session
	IdempotencyKey    string
	Account           billing.AccountRef
	Currency          string
	Amount            decimal.Decimal
	Description       string
	ClientReferenceID string
	Metadata          map[string]string
}

// CheckoutGateway creates hosted checkout sessions. Implementations perform
// network I/O and must never be called inside a ledger transaction.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*billing.CheckoutSession, error)
}

// ProcessedEventCache is a best-effort record of event ids that have committed.
// A miss proves nothing; the processed_events claim is authoritative.
type ProcessedEventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// Duplicate detection layers
const (
	DuplicateLayerCache = "cache"
	DuplicateLayerStore = "store"
	DuplicateLayerClaim = "claim"
)

// Ignore reasons
const (
	IgnoreReasonUnsupported     = "unsupported"
	IgnoreReasonAccountMismatch = "account_mismatch"
)

// ReconciliationRecorder receives reconciliation measurements
type ReconciliationRecorder interface {
	EventReceived(ctx context.Context, eventType string)
	EventProcessed(ctx context.Context, eventType string, duration time.Duration)
	EventDuplicate(ctx context.Context, eventType, layer string)
	EventIgnored(ctx context.Context, eventType, reason string)
	EventFailed(ctx context.Context, eventType string)
	PaymentRecorded(ctx context.Context, method billing.PaymentMethod)
}

// NoopRecorder discards all measurements
type NoopRecorder struct{}

func (NoopRecorder) EventReceived(context.Context, string) {}
func (NoopRecorder) EventProcessed(context.Context, string, time.Duration) {}
func (NoopRecorder) EventDuplicate(context.Context, string, string) {}
func (NoopRecorder) EventIgnored(context.Context, string, string) {}
func (NoopRecorder) EventFailed(context.Context, string) {}
func (NoopRecorder) PaymentRecorded(context.Context, billing.PaymentMethod) {}

var _ ReconciliationRecorder = NoopRecorder{}
