package billing

import (
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstimateStatus represents the status of an estimate
type EstimateStatus string

const (
	EstimateStatusDraft    EstimateStatus = "draft"
	EstimateStatusSent     EstimateStatus = "sent"
	EstimateStatusApproved EstimateStatus = "approved"
	EstimateStatusDeclined EstimateStatus = "declined"
	EstimateStatusExpired  EstimateStatus = "expired"
)

// DepositBreakdown is the deposit portion priced into an approved estimate
type DepositBreakdown struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// EstimateSnapshot is the immutable pricing captured when the customer approved.
// Invoices copy these values instead of recomputing them.
type EstimateSnapshot struct {
	Subtotal   decimal.Decimal   `json:"subtotal"`
	TaxRate    decimal.Decimal   `json:"tax_rate"`
	TaxAmount  decimal.Decimal   `json:"tax_amount"`
	Total      decimal.Decimal   `json:"total"`
	Currency   string            `json:"currency,omitempty"`
	ApprovedAt time.Time         `json:"approved_at"`
	Deposit    *DepositBreakdown `json:"deposit,omitempty"`
}

// CurrencyOrDefault returns the snapshot currency, falling back to DefaultCurrency
func (s *EstimateSnapshot) CurrencyOrDefault() string {
	if s.Currency == "" {
		return DefaultCurrency
	}
	return s.Currency
}

// Estimate is the priced proposal an invoice is created from
type Estimate struct {
	shared.TenantAggregateRoot
	CustomerID uuid.UUID
	JobID      *uuid.UUID
	Status     EstimateStatus
	Snapshot   *EstimateSnapshot
}

// EnsureBillable returns ErrNotBillable unless the estimate is approved with a snapshot
func (e *Estimate) EnsureBillable() error {
	if e.Status != EstimateStatusApproved {
		return ErrNotBillable.
			WithMessage("estimate must be approved before invoicing").
			WithDetail("estimate_status", string(e.Status))
	}
	if e.Snapshot == nil {
		return ErrNotBillable.WithMessage("approved estimate has no pricing snapshot")
	}
	return nil
}
