package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentPlanService manages installment plans. Installments are settled by
// webhook reconciliation, never here.
type PaymentPlanService struct {
	ledger  Ledger
	scope   LedgerScope
	gateway CheckoutGateway
	logger  *zap.Logger
	now     func() time.Time
}

// NewPaymentPlanService creates a new PaymentPlanService
func NewPaymentPlanService(ledger Ledger, scope LedgerScope, gateway CheckoutGateway, logger *zap.Logger) *PaymentPlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentPlanService{
		ledger:  ledger,
		scope:   scope,
		gateway: gateway,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source
func (s *PaymentPlanService) SetClock(now func() time.Time) {
	s.now = now
}

// Create validates and stores a new plan
func (s *PaymentPlanService) Create(ctx context.Context, tenantID uuid.UUID, input CreatePaymentPlanInput) (*PaymentPlanResponse, error) {
	plan, err := billing.NewPaymentPlan(tenantID, input.CustomerID, input.JobID, input.Currency, input.Total, input.Items, billing.AccountFromPtr(input.StripeAccountID))
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(ledger Ledger) error {
		w := &ledgerWriter{ledger: ledger, logger: s.logger, now: s.now(), actor: input.Actor}
		plan.CreatedAt, plan.UpdatedAt = w.now, w.now
		if err := ledger.PaymentPlans().Create(ctx, plan); err != nil {
			return fmt.Errorf("failed to create payment plan: %w", err)
		}
		state := plan.Snapshot()
		state["items"] = len(plan.Items)
		return w.audit(ctx, tenantID, billing.AuditPlanCreated, billing.EntityPaymentPlan, plan.ID, state)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment plan created",
		zap.String("payment_plan_id", plan.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.Int("items", len(plan.Items)),
		zap.String("total", plan.Total.StringFixed(2)))

	resp := ToPaymentPlanResponse(plan)
	return &resp, nil
}

// Get returns a plan with its items
func (s *PaymentPlanService) Get(ctx context.Context, tenantID, planID uuid.UUID) (*PaymentPlanResponse, error) {
	plan, err := s.ledger.PaymentPlans().FindByIDForTenant(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentPlanResponse(plan)
	return &resp, nil
}

// SendInstallment creates a hosted checkout for one pending installment. The
// session carries installment metadata so its completion settles the item
// instead of an invoice.
func (s *PaymentPlanService) SendInstallment(ctx context.Context, tenantID, planID, itemID uuid.UUID) (*SendResult, error) {
	plan, err := s.ledger.PaymentPlans().FindByIDForTenant(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	item, err := plan.EnsureItemPayable(itemID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Creating installment checkout session",
		zap.String("payment_plan_id", plan.ID.String()),
		zap.Int("sequence", item.Sequence),
		zap.String("amount", item.Amount.StringFixed(2)))

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		IdempotencyKey:    fmt.Sprintf("installment-%s-v%d", item.ID, plan.Version),
		Account:           plan.Account(),
		Currency:          plan.Currency,
		Amount:            item.Amount,
		Description:       fmt.Sprintf("Installment %d of %d", item.Sequence, len(plan.Items)),
		ClientReferenceID: item.ID.String(),
		Metadata:          billing.InstallmentMetadata(tenantID, plan.ID, item.ID),
	})
	if err != nil {
		s.logger.Error("Failed to create installment checkout session",
			zap.String("payment_plan_id", plan.ID.String()),
			zap.Error(err))
		return nil, err
	}

	err = s.scope.Execute(ctx, func(ledger Ledger) error {
		locked, err := ledger.PaymentPlans().FindForUpdate(ctx, tenantID, planID, billing.NoAccount())
		if err != nil {
			return err
		}
		if err := locked.AttachItemCheckout(itemID, session.ID, s.now()); err != nil {
			return err
		}
		return ledger.PaymentPlans().Save(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	return &SendResult{CheckoutURL: session.URL, ExpiresAt: session.ExpiresAt}, nil
}
