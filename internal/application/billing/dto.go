package billing

import (
	"time"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInvoiceInput holds the options for creating an invoice from an estimate
type CreateInvoiceInput struct {
	Type billing.InvoiceType
	// StripeAccountID routes checkout through a connected account when set
	StripeAccountID *string
	Actor           *uuid.UUID
}

// OfflinePaymentInput describes money recorded by hand against an invoice
type OfflinePaymentInput struct {
	Amount     decimal.Decimal
	Instrument billing.PaymentInstrument
	Notes      string
	RecordedBy *uuid.UUID
}

// CreatePaymentPlanInput holds the fields for a new payment plan
type CreatePaymentPlanInput struct {
	CustomerID      uuid.UUID
	JobID           *uuid.UUID
	Currency        string
	Total           decimal.Decimal
	Items           []billing.PaymentPlanItemInput
	StripeAccountID *string
	Actor           *uuid.UUID
}

// SendResult is returned when an invoice or installment is sent for payment
type SendResult struct {
	CheckoutURL string    `json:"checkout_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Reused      bool      `json:"reused"`
}

// AllocationResponse represents an invoice allocation in API responses
type AllocationResponse struct {
	ID            uuid.UUID       `json:"id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
	CreatedAt     time.Time       `json:"created_at"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID              uuid.UUID            `json:"id"`
	TenantID        uuid.UUID            `json:"tenant_id"`
	CustomerID      uuid.UUID            `json:"customer_id"`
	JobID           *uuid.UUID           `json:"job_id,omitempty"`
	EstimateID      *uuid.UUID           `json:"estimate_id,omitempty"`
	Type            string               `json:"type"`
	Status          string               `json:"status"`
	Currency        string               `json:"currency"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	TaxRate         decimal.Decimal      `json:"tax_rate"`
	TaxAmount       decimal.Decimal      `json:"tax_amount"`
	Total           decimal.Decimal      `json:"total"`
	AmountPaid      decimal.Decimal      `json:"amount_paid"`
	AmountDue       decimal.Decimal      `json:"amount_due"`
	StripeAccountID *string              `json:"stripe_account_id,omitempty"`
	CheckoutURL     *string              `json:"checkout_url,omitempty"`
	VoidReason      string               `json:"void_reason,omitempty"`
	SentAt          *time.Time           `json:"sent_at,omitempty"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
	DisputedAt      *time.Time           `json:"disputed_at,omitempty"`
	RefundedAt      *time.Time           `json:"refunded_at,omitempty"`
	VoidedAt        *time.Time           `json:"voided_at,omitempty"`
	Allocations     []AllocationResponse `json:"allocations"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Version         int                  `json:"version"`
}

// ToInvoiceResponse converts a domain Invoice and its allocations to a response
func ToInvoiceResponse(inv *billing.Invoice, allocations []billing.InvoiceAllocation) InvoiceResponse {
	resp := InvoiceResponse{
		ID:              inv.ID,
		TenantID:        inv.TenantID,
		CustomerID:      inv.CustomerID,
		JobID:           inv.JobID,
		EstimateID:      inv.EstimateID,
		Type:            string(inv.Type),
		Status:          inv.Status.String(),
		Currency:        inv.Currency,
		Subtotal:        inv.Subtotal,
		TaxRate:         inv.TaxRate,
		TaxAmount:       inv.TaxAmount,
		Total:           inv.Total,
		AmountPaid:      inv.AmountPaid,
		AmountDue:       inv.AmountDue,
		StripeAccountID: inv.StripeAccountID,
		CheckoutURL:     inv.CheckoutURL,
		VoidReason:      inv.VoidReason,
		SentAt:          inv.SentAt,
		PaidAt:          inv.PaidAt,
		DisputedAt:      inv.DisputedAt,
		RefundedAt:      inv.RefundedAt,
		VoidedAt:        inv.VoidedAt,
		Allocations:     make([]AllocationResponse, len(allocations)),
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		Version:         inv.Version,
	}
	for i, a := range allocations {
		resp.Allocations[i] = AllocationResponse{
			ID:            a.ID,
			PaymentID:     a.PaymentID,
			AmountApplied: a.AmountApplied,
			CreatedAt:     a.CreatedAt,
		}
	}
	return resp
}

// PaymentPlanItemResponse represents an installment in API responses
type PaymentPlanItemResponse struct {
	ID       uuid.UUID       `json:"id"`
	Sequence int             `json:"sequence"`
	Amount   decimal.Decimal `json:"amount"`
	DueDate  time.Time       `json:"due_date"`
	Status   string          `json:"status"`
	PaidAt   *time.Time      `json:"paid_at,omitempty"`
}

// PaymentPlanResponse represents a payment plan in API responses
type PaymentPlanResponse struct {
	ID         uuid.UUID                 `json:"id"`
	TenantID   uuid.UUID                 `json:"tenant_id"`
	CustomerID uuid.UUID                 `json:"customer_id"`
	JobID      *uuid.UUID                `json:"job_id,omitempty"`
	Currency   string                    `json:"currency"`
	Total      decimal.Decimal           `json:"total"`
	AmountPaid decimal.Decimal           `json:"amount_paid"`
	AmountDue  decimal.Decimal           `json:"amount_due"`
	Status     string                    `json:"status"`
	Items      []PaymentPlanItemResponse `json:"items"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
	Version    int                       `json:"version"`
}

// ToPaymentPlanResponse converts a domain PaymentPlan to a response
func ToPaymentPlanResponse(plan *billing.PaymentPlan) PaymentPlanResponse {
	resp := PaymentPlanResponse{
		ID:         plan.ID,
		TenantID:   plan.TenantID,
		CustomerID: plan.CustomerID,
		JobID:      plan.JobID,
		Currency:   plan.Currency,
		Total:      plan.Total,
		AmountPaid: plan.AmountPaid,
		AmountDue:  plan.AmountDue,
		Status:     string(plan.Status),
		Items:      make([]PaymentPlanItemResponse, len(plan.Items)),
		CreatedAt:  plan.CreatedAt,
		UpdatedAt:  plan.UpdatedAt,
		Version:    plan.Version,
	}
	for i, item := range plan.Items {
		resp.Items[i] = PaymentPlanItemResponse{
			ID:       item.ID,
			Sequence: item.Sequence,
			Amount:   item.Amount,
			DueDate:  item.DueDate,
			Status:   string(item.Status),
			PaidAt:   item.PaidAt,
		}
	}
	return resp
}
