package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ledgerWriter groups the ledger writes shared by webhook reconciliation and the
// synchronous lifecycle operations. It is bound to one transaction.
type ledgerWriter struct {
	ledger Ledger
	logger *zap.Logger
	now    time.Time
	actor  *uuid.UUID
}

// applyPayment records a payment against a locked invoice, appends its allocation
// and recomputes the invoice from the full allocation sum.
func (w *ledgerWriter) applyPayment(ctx context.Context, inv *billing.Invoice, payment *billing.Payment) error {
	if err := w.ledger.Payments().Create(ctx, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	if err := w.ledger.Allocations().Create(ctx, billing.NewAllocation(payment, w.now)); err != nil {
		return fmt.Errorf("failed to create allocation: %w", err)
	}
	if err := w.audit(ctx, inv.TenantID, billing.AuditPaymentRecorded, billing.EntityPayment, payment.ID, map[string]any{
		"invoice_id": inv.ID.String(),
		"method":     string(payment.Method),
		"instrument": string(payment.Instrument),
		"amount":     payment.Amount.StringFixed(2),
	}); err != nil {
		return err
	}

	// The invoice row is locked, so the sum sees every committed allocation
	allocations, err := w.ledger.Allocations().ListByInvoice(ctx, inv.TenantID, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to list allocations: %w", err)
	}

	previous := inv.Status
	if err := inv.ApplySettlement(billing.SumAllocations(allocations), w.now); err != nil {
		return err
	}
	if err := w.saveInvoice(ctx, inv, previous); err != nil {
		return err
	}

	if previous != billing.InvoiceStatusPaid && inv.Status == billing.InvoiceStatusPaid {
		return w.setDepositGate(ctx, inv, true, billing.AuditJobDepositPaid)
	}
	return nil
}

// saveInvoice persists the invoice and audits a status change
func (w *ledgerWriter) saveInvoice(ctx context.Context, inv *billing.Invoice, previous billing.InvoiceStatus) error {
	if err := w.ledger.Invoices().Save(ctx, inv); err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	if inv.Status == previous {
		return nil
	}

	w.logger.Info("Invoice status changed",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("tenant_id", inv.TenantID.String()),
		zap.String("from", previous.String()),
		zap.String("to", inv.Status.String()))

	return w.audit(ctx, inv.TenantID, billing.InvoiceStatusAction(inv.Status), billing.EntityInvoice, inv.ID, inv.Snapshot())
}

// setDepositGate writes the job's deposit gate for a deposit invoice and audits
// the transition. Non-deposit invoices are ignored.
func (w *ledgerWriter) setDepositGate(ctx context.Context, inv *billing.Invoice, paid bool, action billing.AuditAction) error {
	if !inv.IsDepositForJob() {
		return nil
	}

	job, err := w.ledger.Jobs().FindForUpdate(ctx, inv.TenantID, *inv.JobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			w.logger.Warn("Job for deposit invoice not found, skipping deposit gate",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("job_id", inv.JobID.String()))
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}

	if job.SetDepositPaid(paid, w.now) {
		if err := w.ledger.Jobs().SaveDepositGate(ctx, job); err != nil {
			return fmt.Errorf("failed to save deposit gate: %w", err)
		}
	}

	return w.audit(ctx, inv.TenantID, action, billing.EntityJob, job.ID, map[string]any{
		"deposit_paid": job.DepositPaid,
		"invoice_id":   inv.ID.String(),
	})
}

func (w *ledgerWriter) audit(ctx context.Context, tenantID uuid.UUID, action billing.AuditAction, entityType string, entityID uuid.UUID, state map[string]any) error {
	entry := billing.NewAuditLog(tenantID, action, entityType, entityID, state, w.actor, w.now)
	if err := w.ledger.AuditLogs().Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}
