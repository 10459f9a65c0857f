package billing

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a business-meaningful transition
type AuditAction string

const (
	AuditInvoiceCreated  AuditAction = "invoice.created"
	AuditInvoiceSent     AuditAction = "invoice.sent"
	AuditInvoicePartial  AuditAction = "invoice.partial"
	AuditInvoicePaid     AuditAction = "invoice.paid"
	AuditInvoiceDisputed AuditAction = "invoice.disputed"
	AuditInvoiceRefunded AuditAction = "invoice.refunded"
	AuditInvoiceVoided   AuditAction = "invoice.voided"

	AuditPaymentRecorded AuditAction = "payment.recorded"
	AuditPaymentRefunded AuditAction = "payment.refunded"

	AuditJobDepositPaid        AuditAction = "job.deposit_paid"
	AuditJobDepositRefunded    AuditAction = "job.deposit_refunded"
	AuditJobDepositDisputed    AuditAction = "job.deposit_disputed"
	AuditJobDepositDisputeWon  AuditAction = "job.deposit_dispute_won"
	AuditJobDepositDisputeLost AuditAction = "job.deposit_dispute_lost"

	AuditPlanCreated         AuditAction = "payment_plan.created"
	AuditPlanInstallmentPaid AuditAction = "payment_plan.installment_paid"
	AuditPlanCompleted       AuditAction = "payment_plan.completed"
)

// Audited entity types
const (
	EntityInvoice     = "invoice"
	EntityPayment     = "payment"
	EntityJob         = "job"
	EntityPaymentPlan = "payment_plan"
)

// InvoiceStatusAction returns the audit action recorded when an invoice enters status
func InvoiceStatusAction(status InvoiceStatus) AuditAction {
	return AuditAction("invoice." + string(status))
}

// AuditLog is an append-only record of a ledger transition.
// ID is assigned by the repository.
type AuditLog struct {
	ID         int64
	TenantID   uuid.UUID
	Action     AuditAction
	EntityType string
	EntityID   uuid.UUID
	NewState   map[string]any
	ActorID    *uuid.UUID
	CreatedAt  time.Time
}

// NewAuditLog creates an audit entry for an entity transition
func NewAuditLog(tenantID uuid.UUID, action AuditAction, entityType string, entityID uuid.UUID, newState map[string]any, actor *uuid.UUID, at time.Time) *AuditLog {
	return &AuditLog{
		TenantID:   tenantID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		NewState:   newState,
		ActorID:    actor,
		CreatedAt:  at,
	}
}
