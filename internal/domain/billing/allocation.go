package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceAllocation applies part or all of a payment to an invoice.
// Allocations are append-only; an invoice's AmountPaid is always their sum.
type InvoiceAllocation struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	InvoiceID     uuid.UUID
	PaymentID     uuid.UUID
	AmountApplied decimal.Decimal
	CreatedAt     time.Time
}

// NewAllocation applies the full payment amount to its invoice
func NewAllocation(p *Payment, at time.Time) *InvoiceAllocation {
	return &InvoiceAllocation{
		ID:            uuid.New(),
		TenantID:      p.TenantID,
		InvoiceID:     p.InvoiceID,
		PaymentID:     p.ID,
		AmountApplied: p.Amount,
		CreatedAt:     at,
	}
}

// SumAllocations totals the applied amounts
func SumAllocations(allocations []InvoiceAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.AmountApplied)
	}
	return total
}
