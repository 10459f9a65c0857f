package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// applyInstallment marks a payment plan item paid. It never touches invoices,
// payments or allocations.
func (h *LedgerHandler) applyInstallment(ctx context.Context, account billing.AccountRef, md billing.PaymentMetadata, correlationID string) error {
	if md.TenantID == nil {
		h.w.logger.Warn("Installment event has no tenant, skipping",
			zap.String("payment_plan_id", md.PaymentPlanID.String()))
		return nil
	}

	plan, err := h.w.ledger.PaymentPlans().FindForUpdate(ctx, *md.TenantID, *md.PaymentPlanID, account)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.w.logger.Info("Payment plan not found, skipping",
				zap.String("payment_plan_id", md.PaymentPlanID.String()))
			return nil
		}
		return fmt.Errorf("failed to load payment plan: %w", err)
	}

	changed, err := plan.MarkItemPaid(*md.PaymentPlanItemID, correlationID, h.w.now)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.w.logger.Warn("Payment plan item not found, skipping",
				zap.String("payment_plan_id", plan.ID.String()),
				zap.String("payment_plan_item_id", md.PaymentPlanItemID.String()))
			return nil
		}
		return err
	}
	if !changed {
		return nil
	}

	if err := h.w.ledger.PaymentPlans().Save(ctx, plan); err != nil {
		return fmt.Errorf("failed to save payment plan: %w", err)
	}

	item, _ := plan.Item(*md.PaymentPlanItemID)
	state := plan.Snapshot()
	state["item_id"] = item.ID.String()
	state["item_sequence"] = item.Sequence
	state["correlation_id"] = correlationID
	if err := h.w.audit(ctx, plan.TenantID, billing.AuditPlanInstallmentPaid, billing.EntityPaymentPlan, plan.ID, state); err != nil {
		return err
	}

	h.w.logger.Info("Installment paid",
		zap.String("payment_plan_id", plan.ID.String()),
		zap.Int("sequence", item.Sequence),
		zap.String("amount_due", plan.AmountDue.StringFixed(2)))

	if plan.IsCompleted() {
		return h.w.audit(ctx, plan.TenantID, billing.AuditPlanCompleted, billing.EntityPaymentPlan, plan.ID, plan.Snapshot())
	}
	return nil
}
