package billing

import (
	"context"

	"github.com/google/uuid"
)

// Finders taking an AccountRef filter on the routing account only when it is
// present. Finders suffixed ForUpdate take a row lock and must run inside a
// ledger transaction.

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindForUpdate locks an invoice by ID within a tenant
	FindForUpdate(ctx context.Context, tenantID, id uuid.UUID, account AccountRef) (*Invoice, error)

	// FindByCheckoutSessionForUpdate locks the invoice a checkout session was created for
	FindByCheckoutSessionForUpdate(ctx context.Context, sessionID string, account AccountRef) (*Invoice, error)

	// FindByPaymentIntentForUpdate locks the invoice a payment intent was recorded on
	FindByPaymentIntentForUpdate(ctx context.Context, paymentIntentID string, account AccountRef) (*Invoice, error)

	// FindByDisputeForUpdate locks the invoice holding an open dispute
	FindByDisputeForUpdate(ctx context.Context, disputeID string, account AccountRef) (*Invoice, error)

	// ExistsActiveForEstimate checks for a non-voided invoice of the type for an estimate
	ExistsActiveForEstimate(ctx context.Context, tenantID, estimateID uuid.UUID, invoiceType InvoiceType) (bool, error)

	// Create inserts a new invoice
	Create(ctx context.Context, invoice *Invoice) error

	// Save updates an invoice with optimistic locking and bumps its version
	Save(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByPaymentIntent finds the payment recorded for a payment intent
	FindByPaymentIntent(ctx context.Context, paymentIntentID string, account AccountRef) (*Payment, error)

	// FindByCharge finds the payment recorded for a charge
	FindByCharge(ctx context.Context, chargeID string, account AccountRef) (*Payment, error)

	// ListByInvoice lists the payments of an invoice, oldest first
	ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)

	// Create inserts a new payment
	Create(ctx context.Context, payment *Payment) error

	// Save updates a payment
	Save(ctx context.Context, payment *Payment) error
}

// AllocationRepository defines the interface for invoice allocation persistence.
// Allocations are never updated or deleted.
type AllocationRepository interface {
	Create(ctx context.Context, allocation *InvoiceAllocation) error
	ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]InvoiceAllocation, error)
	CountByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (int64, error)
}

// JobRepository exposes the deposit gate of jobs
type JobRepository interface {
	FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Job, error)
	Create(ctx context.Context, job *Job) error
	SaveDepositGate(ctx context.Context, job *Job) error
}

// AuditLogRepository appends and reads audit entries
type AuditLogRepository interface {
	Append(ctx context.Context, entry *AuditLog) error
	ListByEntity(ctx context.Context, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]AuditLog, error)
}

// PaymentPlanRepository defines the interface for payment plan persistence
type PaymentPlanRepository interface {
	// FindByIDForTenant finds a plan with its items
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PaymentPlan, error)

	// FindForUpdate locks a plan and loads its items
	FindForUpdate(ctx context.Context, tenantID, id uuid.UUID, account AccountRef) (*PaymentPlan, error)

	// Create inserts a plan and its items
	Create(ctx context.Context, plan *PaymentPlan) error

	// Save updates a plan and its items with optimistic locking
	Save(ctx context.Context, plan *PaymentPlan) error
}

// ProcessedEventRepository records which processor events have taken effect
type ProcessedEventRepository interface {
	// Exists reports whether the event id has already been claimed
	Exists(ctx context.Context, eventID string) (bool, error)

	// Claim inserts the event if absent and reports whether this call inserted it
	Claim(ctx context.Context, event *ProcessedEvent) (bool, error)
}

// EstimateRepository reads the estimates invoices are billed from
type EstimateRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Estimate, error)
	Create(ctx context.Context, estimate *Estimate) error
}
