package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Reconciler applies verified processor events to the ledger. Missing invoices,
// payments and plans are acknowledged without effect.
type Reconciler struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewReconciler creates a new Reconciler
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Bind returns an event handler whose writes go through ledger
func (r *Reconciler) Bind(ledger Ledger, eventID string) *LedgerHandler {
	return &LedgerHandler{
		w: &ledgerWriter{
			ledger: ledger,
			logger: r.logger.With(zap.String("event_id", eventID)),
			now:    r.now(),
		},
	}
}

// LedgerHandler implements billing.EventHandler for a single transaction
type LedgerHandler struct {
	w *ledgerWriter
	// recorded lists payment methods settled by this handler, reported after commit
	recorded []billing.PaymentMethod
}

// Recorded returns the payment methods settled by this handler
func (h *LedgerHandler) Recorded() []billing.PaymentMethod {
	return h.recorded
}

// HandleCheckoutCompleted settles the invoice or installment a checkout was created for
func (h *LedgerHandler) HandleCheckoutCompleted(ctx context.Context, e *billing.CheckoutCompleted) error {
	if e.Metadata.IsInstallment() {
		return h.applyInstallment(ctx, e.Account, e.Metadata, firstNonEmpty(e.PaymentIntentID, e.SessionID))
	}

	inv, err := h.resolveInvoice(ctx, e.Metadata, e.Account, func() (*billing.Invoice, error) {
		return h.w.ledger.Invoices().FindByCheckoutSessionForUpdate(ctx, e.SessionID, e.Account)
	})
	if err != nil || inv == nil {
		return err
	}

	return h.settle(ctx, inv, billing.ProcessorSettlement{
		Amount:          e.Amount,
		PaymentIntentID: e.PaymentIntentID,
		Account:         e.Account,
	})
}

// HandlePaymentSucceeded is the safety net for a missed or delayed checkout event
func (h *LedgerHandler) HandlePaymentSucceeded(ctx context.Context, e *billing.PaymentSucceeded) error {
	if e.Metadata.IsInstallment() {
		return h.applyInstallment(ctx, e.Account, e.Metadata, e.PaymentIntentID)
	}

	inv, err := h.resolveInvoice(ctx, e.Metadata, e.Account, func() (*billing.Invoice, error) {
		return h.w.ledger.Invoices().FindByPaymentIntentForUpdate(ctx, e.PaymentIntentID, e.Account)
	})
	if err != nil || inv == nil {
		return err
	}

	return h.settle(ctx, inv, billing.ProcessorSettlement{
		Amount:          e.Amount,
		PaymentIntentID: e.PaymentIntentID,
		ChargeID:        e.ChargeID,
		Account:         e.Account,
	})
}

// HandleChargeRefunded records the cumulative refund on the charge's payment
func (h *LedgerHandler) HandleChargeRefunded(ctx context.Context, e *billing.ChargeRefunded) error {
	inv, payment, err := h.lockPaymentInvoice(ctx, e.ChargeID, e.PaymentIntentID, e.Account)
	if err != nil || inv == nil {
		return err
	}

	full := e.FullyRefunded || e.AmountRefunded.GreaterThanOrEqual(payment.Amount)
	if !payment.ApplyRefund(e.AmountRefunded, full, h.w.now) {
		h.w.logger.Debug("Refund total unchanged", zap.String("payment_id", payment.ID.String()))
		return nil
	}
	if err := h.w.ledger.Payments().Save(ctx, payment); err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	if err := h.w.audit(ctx, payment.TenantID, billing.AuditPaymentRefunded, billing.EntityPayment, payment.ID, map[string]any{
		"status":          string(payment.Status),
		"refunded_amount": payment.RefundedAmount.StringFixed(2),
	}); err != nil {
		return err
	}

	if !payment.IsFullyRefunded() || inv.Status != billing.InvoiceStatusPaid {
		return nil
	}

	previous := inv.Status
	if err := inv.MarkRefunded(h.w.now); err != nil {
		return err
	}
	if err := h.w.saveInvoice(ctx, inv, previous); err != nil {
		return err
	}
	return h.w.setDepositGate(ctx, inv, false, billing.AuditJobDepositRefunded)
}

// HandleDisputeCreated moves the disputed payment's invoice to disputed
func (h *LedgerHandler) HandleDisputeCreated(ctx context.Context, e *billing.DisputeCreated) error {
	inv, _, err := h.lockPaymentInvoice(ctx, e.ChargeID, e.PaymentIntentID, e.Account)
	if err != nil || inv == nil {
		return err
	}

	previous := inv.Status
	changed, err := inv.MarkDisputed(e.DisputeID, h.w.now)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidStateTransition) {
			h.w.logger.Warn("Dispute opened on invoice that cannot be disputed",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("status", inv.Status.String()),
				zap.String("dispute_id", e.DisputeID))
			return nil
		}
		return err
	}
	if !changed {
		return nil
	}

	if err := h.w.saveInvoice(ctx, inv, previous); err != nil {
		return err
	}
	return h.w.setDepositGate(ctx, inv, false, billing.AuditJobDepositDisputed)
}

// HandleDisputeClosed resolves the dispute held on an invoice
func (h *LedgerHandler) HandleDisputeClosed(ctx context.Context, e *billing.DisputeClosed) error {
	inv, err := h.w.ledger.Invoices().FindByDisputeForUpdate(ctx, e.DisputeID, e.Account)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.w.logger.Info("No invoice holds dispute, skipping", zap.String("dispute_id", e.DisputeID))
			return nil
		}
		return fmt.Errorf("failed to load invoice: %w", err)
	}
	if inv.Status != billing.InvoiceStatusDisputed {
		h.w.logger.Info("Invoice is not disputed, skipping dispute close",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("status", inv.Status.String()))
		return nil
	}

	previous := inv.Status
	if err := inv.ResolveDispute(e.Outcome, h.w.now); err != nil {
		return err
	}
	if err := h.w.saveInvoice(ctx, inv, previous); err != nil {
		return err
	}

	if e.Outcome.Favorable() {
		// A won dispute on a short-paid invoice resolves to partial; the gate
		// only reopens once the deposit is fully covered
		return h.w.setDepositGate(ctx, inv, inv.Status == billing.InvoiceStatusPaid, billing.AuditJobDepositDisputeWon)
	}
	return h.w.setDepositGate(ctx, inv, false, billing.AuditJobDepositDisputeLost)
}

// settle records a processor payment exactly once per payment intent
func (h *LedgerHandler) settle(ctx context.Context, inv *billing.Invoice, s billing.ProcessorSettlement) error {
	logger := h.w.logger.With(zap.String("invoice_id", inv.ID.String()), zap.String("payment_intent_id", s.PaymentIntentID))

	if s.PaymentIntentID == "" {
		logger.Warn("Settlement has no payment intent, skipping")
		return nil
	}

	existing, err := h.w.ledger.Payments().FindByPaymentIntent(ctx, s.PaymentIntentID, s.Account)
	switch {
	case err == nil:
		if existing.AttachCharge(s.ChargeID, h.w.now) {
			if err := h.w.ledger.Payments().Save(ctx, existing); err != nil {
				return fmt.Errorf("failed to backfill charge: %w", err)
			}
			logger.Info("Backfilled charge on payment", zap.String("charge_id", s.ChargeID))
		}
		return nil
	case !errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("failed to load payment: %w", err)
	}

	if !inv.Status.CanAcceptAllocation() {
		logger.Info("Invoice no longer accepts payments, skipping", zap.String("status", inv.Status.String()))
		return nil
	}

	payment, err := billing.NewProcessorPayment(inv, s, h.w.now)
	if err != nil {
		return err
	}
	inv.RecordPaymentIntent(s.PaymentIntentID)
	if err := h.w.applyPayment(ctx, inv, payment); err != nil {
		return err
	}
	h.recorded = append(h.recorded, payment.Method)

	logger.Info("Processor payment recorded",
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("status", inv.Status.String()))
	return nil
}

// resolveInvoice locks the invoice named by the metadata, falling back to lookup.
// It returns nil without error when no matching invoice exists.
func (h *LedgerHandler) resolveInvoice(ctx context.Context, md billing.PaymentMetadata, account billing.AccountRef, lookup func() (*billing.Invoice, error)) (*billing.Invoice, error) {
	var (
		inv *billing.Invoice
		err error
	)
	if tenantID, invoiceID, ok := md.InvoiceKey(); ok {
		inv, err = h.w.ledger.Invoices().FindForUpdate(ctx, tenantID, invoiceID, account)
	} else {
		inv, err = lookup()
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.w.logger.Info("No invoice matches event, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if md.TenantMismatch(inv.TenantID) {
		h.w.logger.Warn("Event tenant does not own invoice, skipping",
			zap.String("invoice_id", inv.ID.String()))
		return nil, nil
	}
	return inv, nil
}

// lockPaymentInvoice finds a payment by charge, falling back to payment intent,
// then locks its invoice and re-reads the payment under the lock.
func (h *LedgerHandler) lockPaymentInvoice(ctx context.Context, chargeID, paymentIntentID string, account billing.AccountRef) (*billing.Invoice, *billing.Payment, error) {
	payment, err := h.findPayment(ctx, chargeID, paymentIntentID, account)
	if err != nil || payment == nil {
		return nil, nil, err
	}

	inv, err := h.w.ledger.Invoices().FindForUpdate(ctx, payment.TenantID, payment.InvoiceID, account)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.w.logger.Warn("Payment has no invoice, skipping", zap.String("payment_id", payment.ID.String()))
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	payment, err = h.findPayment(ctx, chargeID, paymentIntentID, account)
	if err != nil || payment == nil {
		return nil, nil, err
	}
	return inv, payment, nil
}

func (h *LedgerHandler) findPayment(ctx context.Context, chargeID, paymentIntentID string, account billing.AccountRef) (*billing.Payment, error) {
	if chargeID != "" {
		payment, err := h.w.ledger.Payments().FindByCharge(ctx, chargeID, account)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("failed to load payment by charge: %w", err)
		}
	}
	if paymentIntentID != "" {
		payment, err := h.w.ledger.Payments().FindByPaymentIntent(ctx, paymentIntentID, account)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("failed to load payment by payment intent: %w", err)
		}
	}
	h.w.logger.Info("No payment matches event, skipping",
		zap.String("charge_id", chargeID),
		zap.String("payment_intent_id", paymentIntentID))
	return nil, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ensure LedgerHandler implements EventHandler
var _ billing.EventHandler = (*LedgerHandler)(nil)
