package billing

import (
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod says how money reached the ledger
type PaymentMethod string

const (
	PaymentMethodProcessor PaymentMethod = "processor"
	PaymentMethodOffline   PaymentMethod = "offline"
)

// PaymentInstrument is the tender used for a payment
type PaymentInstrument string

const (
	InstrumentCard         PaymentInstrument = "card"
	InstrumentCash         PaymentInstrument = "cash"
	InstrumentCheck        PaymentInstrument = "check"
	InstrumentBankTransfer PaymentInstrument = "bank_transfer"
	InstrumentOther        PaymentInstrument = "other"
)

// IsValidOffline reports whether the instrument can be recorded by hand
func (p PaymentInstrument) IsValidOffline() bool {
	switch p {
	case InstrumentCash, InstrumentCheck, InstrumentBankTransfer, InstrumentOther:
		return true
	}
	return false
}

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is a single settlement record, online or offline
type Payment struct {
	shared.BaseEntity
	TenantID        uuid.UUID
	InvoiceID       uuid.UUID
	Method          PaymentMethod
	Instrument      PaymentInstrument
	Status          PaymentStatus
	Amount          decimal.Decimal
	RefundedAmount  decimal.Decimal
	PaymentIntentID *string
	ChargeID        *string
	StripeAccountID *string
	RecordedBy      *uuid.UUID
	Notes           string
	PaidAt          time.Time
	RefundedAt      *time.Time
}

// ProcessorSettlement describes money collected by the payment processor
type ProcessorSettlement struct {
	Amount          decimal.Decimal
	PaymentIntentID string
	ChargeID        string
	Account         AccountRef
}

// OfflineSettlement describes money recorded by a person
type OfflineSettlement struct {
	Amount     decimal.Decimal
	Instrument PaymentInstrument
	Notes      string
	RecordedBy *uuid.UUID
}

func newPayment(inv *Invoice, method PaymentMethod, amount decimal.Decimal, at time.Time) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidInput.WithMessage("payment amount must be positive")
	}
	base := shared.NewBaseEntity()
	base.CreatedAt, base.UpdatedAt = at, at
	return &Payment{
		BaseEntity:     base,
		TenantID:       inv.TenantID,
		InvoiceID:      inv.ID,
		Method:         method,
		Status:         PaymentStatusCompleted,
		Amount:         RoundMoney(amount),
		RefundedAmount: decimal.Zero,
		PaidAt:         at,
	}, nil
}

// NewProcessorPayment creates a completed payment keyed by its payment intent
func NewProcessorPayment(inv *Invoice, s ProcessorSettlement, at time.Time) (*Payment, error) {
	if s.PaymentIntentID == "" {
		return nil, shared.ErrInvalidInput.WithMessage("processor payment requires a payment intent id")
	}
	p, err := newPayment(inv, PaymentMethodProcessor, s.Amount, at)
	if err != nil {
		return nil, err
	}
	pi := s.PaymentIntentID
	p.PaymentIntentID = &pi
	if s.ChargeID != "" {
		charge := s.ChargeID
		p.ChargeID = &charge
	}
	p.Instrument = InstrumentCard
	p.StripeAccountID = s.Account.Ptr()
	return p, nil
}

// NewOfflinePayment creates a completed payment recorded by hand
func NewOfflinePayment(inv *Invoice, s OfflineSettlement, at time.Time) (*Payment, error) {
	if !s.Instrument.IsValidOffline() {
		return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("invalid offline payment method: %s", s.Instrument))
	}
	p, err := newPayment(inv, PaymentMethodOffline, s.Amount, at)
	if err != nil {
		return nil, err
	}
	p.Instrument = s.Instrument
	p.Notes = s.Notes
	p.RecordedBy = s.RecordedBy
	return p, nil
}

// AttachCharge backfills the charge id when it was not known at creation
func (p *Payment) AttachCharge(chargeID string, at time.Time) bool {
	if chargeID == "" || p.ChargeID != nil {
		return false
	}
	p.ChargeID = &chargeID
	p.Touch(at)
	return true
}

// ApplyRefund records the processor's cumulative refunded amount. The payment
// becomes refunded only when the whole amount has been returned. Reports whether
// anything changed.
func (p *Payment) ApplyRefund(totalRefunded decimal.Decimal, full bool, at time.Time) bool {
	refunded := decimal.Min(RoundMoney(totalRefunded), p.Amount)
	if full {
		refunded = p.Amount
	}
	nextStatus := p.Status
	if refunded.GreaterThanOrEqual(p.Amount) {
		nextStatus = PaymentStatusRefunded
	}
	if refunded.Equal(p.RefundedAmount) && nextStatus == p.Status {
		return false
	}
	if refunded.LessThan(p.RefundedAmount) {
		// Out-of-order delivery of an older refund total
		return false
	}
	p.RefundedAmount = refunded
	p.Status = nextStatus
	refundedAt := at
	p.RefundedAt = &refundedAt
	p.Touch(at)
	return true
}

// IsFullyRefunded reports whether the whole amount has been returned
func (p *Payment) IsFullyRefunded() bool {
	return p.Status == PaymentStatusRefunded
}
