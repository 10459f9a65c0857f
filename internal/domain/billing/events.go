package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind classifies a processor event the ledger reacts to
type EventKind string

const (
	EventKindCheckoutCompleted EventKind = "checkout_completed"
	EventKindPaymentSucceeded  EventKind = "payment_succeeded"
	EventKindChargeRefunded    EventKind = "charge_refunded"
	EventKindDisputeCreated    EventKind = "dispute_created"
	EventKindDisputeClosed     EventKind = "dispute_closed"
)

// Metadata keys written on checkout sessions and their payment intents
const (
	MetadataTenantID          = "tenant_id"
	MetadataInvoiceID         = "invoice_id"
	MetadataPaymentPlanID     = "payment_plan_id"
	MetadataPaymentPlanItemID = "payment_plan_item_id"
)

// EventEnvelope carries the fields common to every processor event
type EventEnvelope struct {
	ID      string
	Type    string
	Account AccountRef
	Payload []byte
}

// Envelope returns the common event fields
func (e EventEnvelope) Envelope() EventEnvelope {
	return e
}

// ProcessorEvent is a verified, decoded processor event. The set of variants is
// closed: CheckoutCompleted, PaymentSucceeded, ChargeRefunded, DisputeCreated and
// DisputeClosed.
type ProcessorEvent interface {
	Envelope() EventEnvelope
	Kind() EventKind
	// Dispatch calls the handler method matching the variant
	Dispatch(ctx context.Context, h EventHandler) error
	sealed()
}

// EventHandler reacts to each processor event variant. Adding a variant adds a
// method here, so every handler must be updated before the code compiles.
type EventHandler interface {
	HandleCheckoutCompleted(ctx context.Context, e *CheckoutCompleted) error
	HandlePaymentSucceeded(ctx context.Context, e *PaymentSucceeded) error
	HandleChargeRefunded(ctx context.Context, e *ChargeRefunded) error
	HandleDisputeCreated(ctx context.Context, e *DisputeCreated) error
	HandleDisputeClosed(ctx context.Context, e *DisputeClosed) error
}

// PaymentMetadata is the correlation data the ledger attaches to a checkout.
// Unparseable ids are treated as absent.
type PaymentMetadata struct {
	TenantID          *uuid.UUID
	InvoiceID         *uuid.UUID
	PaymentPlanID     *uuid.UUID
	PaymentPlanItemID *uuid.UUID
}

// ParsePaymentMetadata reads correlation ids from processor metadata
func ParsePaymentMetadata(md map[string]string) PaymentMetadata {
	return PaymentMetadata{
		TenantID:          parseMetadataID(md, MetadataTenantID),
		InvoiceID:         parseMetadataID(md, MetadataInvoiceID),
		PaymentPlanID:     parseMetadataID(md, MetadataPaymentPlanID),
		PaymentPlanItemID: parseMetadataID(md, MetadataPaymentPlanItemID),
	}
}

func parseMetadataID(md map[string]string, key string) *uuid.UUID {
	raw, ok := md[key]
	if !ok || raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// IsInstallment reports whether the metadata points at a payment plan item
func (m PaymentMetadata) IsInstallment() bool {
	return m.PaymentPlanID != nil && m.PaymentPlanItemID != nil
}

// InvoiceKey returns the tenant and invoice ids when both are present
func (m PaymentMetadata) InvoiceKey() (tenantID, invoiceID uuid.UUID, ok bool) {
	if m.TenantID == nil || m.InvoiceID == nil {
		return uuid.Nil, uuid.Nil, false
	}
	return *m.TenantID, *m.InvoiceID, true
}

// TenantMismatch reports whether the metadata names a tenant other than tenantID
func (m PaymentMetadata) TenantMismatch(tenantID uuid.UUID) bool {
	return m.TenantID != nil && *m.TenantID != tenantID
}

// InvoiceMetadata builds the processor metadata for an invoice checkout
func InvoiceMetadata(tenantID, invoiceID uuid.UUID) map[string]string {
	return map[string]string{
		MetadataTenantID:  tenantID.String(),
		MetadataInvoiceID: invoiceID.String(),
	}
}

// InstallmentMetadata builds the processor metadata for a payment plan installment
func InstallmentMetadata(tenantID, planID, itemID uuid.UUID) map[string]string {
	return map[string]string{
		MetadataTenantID:          tenantID.String(),
		MetadataPaymentPlanID:     planID.String(),
		MetadataPaymentPlanItemID: itemID.String(),
	}
}

// DisputeOutcome is the processor's final dispute status. Values other than
// the constants below are kept verbatim and count as unfavorable.
type DisputeOutcome string

const (
	DisputeWon           DisputeOutcome = "won"
	DisputeLost          DisputeOutcome = "lost"
	DisputeWarningClosed DisputeOutcome = "warning_closed"
)

// Favorable reports whether the merchant kept the funds
func (o DisputeOutcome) Favorable() bool {
	return o == DisputeWon || o == DisputeWarningClosed
}

// CheckoutCompleted is emitted when a hosted checkout collects payment
type CheckoutCompleted struct {
	EventEnvelope
	SessionID       string
	PaymentIntentID string
	Amount          decimal.Decimal
	Metadata        PaymentMetadata
}

func (*CheckoutCompleted) Kind() EventKind { return EventKindCheckoutCompleted }
func (*CheckoutCompleted) sealed()         {}

func (e *CheckoutCompleted) Dispatch(ctx context.Context, h EventHandler) error {
	return h.HandleCheckoutCompleted(ctx, e)
}

// PaymentSucceeded is emitted when a payment intent settles
type PaymentSucceeded struct {
	EventEnvelope
	PaymentIntentID string
	ChargeID        string
	Amount          decimal.Decimal
	Metadata        PaymentMetadata
}

func (*PaymentSucceeded) Kind() EventKind { return EventKindPaymentSucceeded }
func (*PaymentSucceeded) sealed()         {}

func (e *PaymentSucceeded) Dispatch(ctx context.Context, h EventHandler) error {
	return h.HandlePaymentSucceeded(ctx, e)
}

// ChargeRefunded carries the cumulative refunded amount of a charge
type ChargeRefunded struct {
	EventEnvelope
	ChargeID        string
	PaymentIntentID string
	Amount          decimal.Decimal
	AmountRefunded  decimal.Decimal
	FullyRefunded   bool
}

func (*ChargeRefunded) Kind() EventKind { return EventKindChargeRefunded }
func (*ChargeRefunded) sealed()         {}

func (e *ChargeRefunded) Dispatch(ctx context.Context, h EventHandler) error {
	return h.HandleChargeRefunded(ctx, e)
}

// DisputeCreated is emitted when a cardholder disputes a charge
type DisputeCreated struct {
	EventEnvelope
	DisputeID       string
	ChargeID        string
	PaymentIntentID string
}

func (*DisputeCreated) Kind() EventKind { return EventKindDisputeCreated }
func (*DisputeCreated) sealed()         {}

func (e *DisputeCreated) Dispatch(ctx context.Context, h EventHandler) error {
	return h.HandleDisputeCreated(ctx, e)
}

// DisputeClosed is emitted when a dispute reaches a final outcome
type DisputeClosed struct {
	EventEnvelope
	DisputeID       string
	ChargeID        string
	PaymentIntentID string
	Outcome         DisputeOutcome
}

func (*DisputeClosed) Kind() EventKind { return EventKindDisputeClosed }
func (*DisputeClosed) sealed()         {}

func (e *DisputeClosed) Dispatch(ctx context.Context, h EventHandler) error {
	return h.HandleDisputeClosed(ctx, e)
}
