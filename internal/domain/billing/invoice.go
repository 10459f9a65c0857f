package billing

import (
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType distinguishes regular invoices from job deposits
type InvoiceType string

const (
	InvoiceTypeStandard InvoiceType = "standard"
	InvoiceTypeDeposit  InvoiceType = "deposit"
)

// IsValid checks if the type is a known InvoiceType
func (t InvoiceType) IsValid() bool {
	return t == InvoiceTypeStandard || t == InvoiceTypeDeposit
}

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "draft"
	InvoiceStatusSent     InvoiceStatus = "sent"
	InvoiceStatusPartial  InvoiceStatus = "partial"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusDisputed InvoiceStatus = "disputed"
	InvoiceStatusRefunded InvoiceStatus = "refunded"
	InvoiceStatusVoided   InvoiceStatus = "voided"
)

// invoiceTransitions is the single authority for legal status changes, shared by
// webhook reconciliation and the synchronous lifecycle operations.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:    {InvoiceStatusSent, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoided},
	InvoiceStatusSent:     {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusRefunded, InvoiceStatusVoided},
	InvoiceStatusPartial:  {InvoiceStatusPaid, InvoiceStatusDisputed},
	InvoiceStatusPaid:     {InvoiceStatusDisputed, InvoiceStatusRefunded},
	InvoiceStatusDisputed: {InvoiceStatusPaid, InvoiceStatusPartial, InvoiceStatusRefunded},
}

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartial, InvoiceStatusPaid,
		InvoiceStatusDisputed, InvoiceStatusRefunded, InvoiceStatusVoided:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusRefunded || s == InvoiceStatusVoided
}

// CanTransitionTo reports whether moving from s to next is legal
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanAcceptAllocation returns true if new payments may be applied in this status
func (s InvoiceStatus) CanAcceptAllocation() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusSent || s == InvoiceStatusPartial
}

// CheckoutSession is the processor-hosted payment page created when sending an invoice
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Invoice represents an amount owed by a customer for a job or estimate
type Invoice struct {
	shared.TenantAggregateRoot
	CustomerID uuid.UUID
	JobID      *uuid.UUID
	EstimateID *uuid.UUID
	Type       InvoiceType
	Status     InvoiceStatus
	Currency   string
	Subtotal   decimal.Decimal
	TaxRate    decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	AmountDue  decimal.Decimal

	StripeAccountID   *string
	CheckoutSessionID *string
	CheckoutURL       *string
	CheckoutExpiresAt *time.Time
	PaymentIntentID   *string
	DisputeID         *string

	VoidReason string
	SentAt     *time.Time
	PaidAt     *time.Time
	DisputedAt *time.Time
	RefundedAt *time.Time
	VoidedAt   *time.Time
}

// NewInvoiceFromEstimate creates a draft invoice whose money fields are copied
// verbatim from the estimate's approved snapshot.
func NewInvoiceFromEstimate(estimate *Estimate, invoiceType InvoiceType, account AccountRef) (*Invoice, error) {
	if !invoiceType.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("invalid invoice type: %s", invoiceType))
	}
	if err := estimate.EnsureBillable(); err != nil {
		return nil, err
	}

	snap := estimate.Snapshot
	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(estimate.TenantID),
		CustomerID:          estimate.CustomerID,
		JobID:               estimate.JobID,
		EstimateID:          &estimate.ID,
		Type:                invoiceType,
		Status:              InvoiceStatusDraft,
		Currency:            snap.CurrencyOrDefault(),
		TaxRate:             snap.TaxRate,
		AmountPaid:          decimal.Zero,
		StripeAccountID:     account.Ptr(),
	}

	switch invoiceType {
	case InvoiceTypeDeposit:
		if snap.Deposit == nil {
			return nil, ErrNotBillable.WithMessage("estimate snapshot has no deposit")
		}
		if estimate.JobID == nil {
			return nil, ErrNotBillable.WithMessage("deposit invoice requires a job")
		}
		inv.Subtotal = snap.Deposit.Subtotal
		inv.TaxAmount = snap.Deposit.TaxAmount
		inv.Total = snap.Deposit.Total
	default:
		inv.Subtotal = snap.Subtotal
		inv.TaxAmount = snap.TaxAmount
		inv.Total = snap.Total
	}

	if !inv.Total.IsPositive() {
		return nil, ErrNotBillable.WithMessage("estimate snapshot total must be positive")
	}
	inv.AmountDue = inv.Total
	return inv, nil
}

// Account returns the processor account the invoice is routed through
func (i *Invoice) Account() AccountRef {
	return AccountFromPtr(i.StripeAccountID)
}

// IsDepositForJob reports whether settling this invoice drives a job's deposit gate
func (i *Invoice) IsDepositForJob() bool {
	return i.Type == InvoiceTypeDeposit && i.JobID != nil
}

// transition moves the invoice to next if the state machine allows it
func (i *Invoice) transition(next InvoiceStatus, operation string) error {
	if i.Status == next {
		return nil
	}
	if !i.Status.CanTransitionTo(next) {
		return NewInvalidTransitionError(operation, i.Status)
	}
	i.Status = next
	return nil
}

// EnsureCanAcceptAllocation returns an error unless new payments may be applied
func (i *Invoice) EnsureCanAcceptAllocation(operation string) error {
	if !i.Status.CanAcceptAllocation() {
		return NewInvalidTransitionError(operation, i.Status)
	}
	return nil
}

// ApplySettlement sets AmountPaid to the given allocation total and derives AmountDue
// and the paid/partial status from it. The caller passes the full sum of allocations,
// never a delta.
func (i *Invoice) ApplySettlement(allocated decimal.Decimal, at time.Time) error {
	next := InvoiceStatusPartial
	if allocated.GreaterThanOrEqual(i.Total) {
		next = InvoiceStatusPaid
	}
	if err := i.transition(next, "apply payment to"); err != nil {
		return err
	}
	i.AmountPaid = allocated
	i.AmountDue = i.Total.Sub(allocated)
	if next == InvoiceStatusPaid && i.PaidAt == nil {
		paidAt := at
		i.PaidAt = &paidAt
	}
	i.Touch(at)
	return nil
}

// EnsureCanSend returns an error unless the invoice may be (re)sent for payment
func (i *Invoice) EnsureCanSend() error {
	if i.Status != InvoiceStatusDraft && i.Status != InvoiceStatusSent {
		return NewInvalidTransitionError("send", i.Status)
	}
	return nil
}

// ReusableCheckoutURL returns the stored checkout URL while it is still valid
func (i *Invoice) ReusableCheckoutURL(now time.Time) (string, bool) {
	if i.Status != InvoiceStatusSent || i.CheckoutURL == nil || i.CheckoutExpiresAt == nil {
		return "", false
	}
	if !now.Before(*i.CheckoutExpiresAt) {
		return "", false
	}
	return *i.CheckoutURL, true
}

// MarkSent records the checkout session and moves the invoice to sent
func (i *Invoice) MarkSent(session CheckoutSession, at time.Time) error {
	if err := i.EnsureCanSend(); err != nil {
		return err
	}
	if err := i.transition(InvoiceStatusSent, "send"); err != nil {
		return err
	}
	id, url, expires := session.ID, session.URL, session.ExpiresAt
	i.CheckoutSessionID = &id
	i.CheckoutURL = &url
	i.CheckoutExpiresAt = &expires
	if i.SentAt == nil {
		sentAt := at
		i.SentAt = &sentAt
	}
	i.Touch(at)
	return nil
}

// RecordPaymentIntent stores the processor payment intent the first time it is seen
func (i *Invoice) RecordPaymentIntent(paymentIntentID string) {
	if paymentIntentID == "" || i.PaymentIntentID != nil {
		return
	}
	i.PaymentIntentID = &paymentIntentID
}

// MarkDisputed moves a settled invoice to disputed. Re-delivery of the same
// dispute id is a no-op and reports false.
func (i *Invoice) MarkDisputed(disputeID string, at time.Time) (bool, error) {
	if i.Status == InvoiceStatusDisputed && i.DisputeID != nil && *i.DisputeID == disputeID {
		return false, nil
	}
	if err := i.transition(InvoiceStatusDisputed, "dispute"); err != nil {
		return false, err
	}
	i.DisputeID = &disputeID
	disputedAt := at
	i.DisputedAt = &disputedAt
	i.Touch(at)
	return true, nil
}

// ResolveDispute closes an open dispute. A favorable outcome restores the status
// implied by the allocations; otherwise the invoice is refunded.
func (i *Invoice) ResolveDispute(outcome DisputeOutcome, at time.Time) error {
	if i.Status != InvoiceStatusDisputed {
		return NewInvalidTransitionError("resolve dispute on", i.Status)
	}
	if outcome.Favorable() {
		next := InvoiceStatusPartial
		if i.AmountPaid.GreaterThanOrEqual(i.Total) {
			next = InvoiceStatusPaid
		}
		if err := i.transition(next, "resolve dispute on"); err != nil {
			return err
		}
		i.Touch(at)
		return nil
	}
	return i.MarkRefunded(at)
}

// MarkRefunded moves the invoice to refunded
func (i *Invoice) MarkRefunded(at time.Time) error {
	if err := i.transition(InvoiceStatusRefunded, "refund"); err != nil {
		return err
	}
	refundedAt := at
	i.RefundedAt = &refundedAt
	i.Touch(at)
	return nil
}

// Void cancels an invoice that no money has moved against
func (i *Invoice) Void(reason string, allocationCount int64, at time.Time) error {
	if allocationCount > 0 {
		return ErrRefundInsteadOfVoid.WithDetail("current_status", i.Status.String())
	}
	if i.Status == InvoiceStatusVoided {
		return NewInvalidTransitionError("void", i.Status)
	}
	if err := i.transition(InvoiceStatusVoided, "void"); err != nil {
		return err
	}
	i.VoidReason = reason
	voidedAt := at
	i.VoidedAt = &voidedAt
	i.Touch(at)
	return nil
}

// Snapshot returns the audit representation of the invoice's current state
func (i *Invoice) Snapshot() map[string]any {
	return map[string]any{
		"status":      i.Status.String(),
		"type":        string(i.Type),
		"total":       i.Total.StringFixed(2),
		"amount_paid": i.AmountPaid.StringFixed(2),
		"amount_due":  i.AmountDue.StringFixed(2),
	}
}
