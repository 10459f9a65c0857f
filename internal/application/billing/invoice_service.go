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

// InvoiceService handles the synchronous invoice lifecycle: creation, sending,
// offline payments and voiding. It shares the state machine and the settlement
// path with webhook reconciliation.
type InvoiceService struct {
	ledger  Ledger
	scope   LedgerScope
	gateway CheckoutGateway
	metrics ReconciliationRecorder
	logger  *zap.Logger
	now     func() time.Time
}

// InvoiceServiceConfig contains configuration for InvoiceService
type InvoiceServiceConfig struct {
	// Ledger serves reads outside any transaction
	Ledger  Ledger
	Scope   LedgerScope
	Gateway CheckoutGateway
	// Metrics is optional
	Metrics ReconciliationRecorder
	Logger  *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(cfg InvoiceServiceConfig) *InvoiceService {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopRecorder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		ledger:  cfg.Ledger,
		scope:   cfg.Scope,
		gateway: cfg.Gateway,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source
func (s *InvoiceService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *InvoiceService) writer(ledger Ledger, actor *uuid.UUID) *ledgerWriter {
	return &ledgerWriter{
		ledger: ledger,
		logger: s.logger,
		now:    s.now(),
		actor:  actor,
	}
}

// CreateFromEstimate creates a draft invoice priced from an approved estimate's snapshot
func (s *InvoiceService) CreateFromEstimate(ctx context.Context, tenantID, estimateID uuid.UUID, input CreateInvoiceInput) (*InvoiceResponse, error) {
	invoiceType := input.Type
	if invoiceType == "" {
		invoiceType = billing.InvoiceTypeStandard
	}

	var created *billing.Invoice
	err := s.scope.Execute(ctx, func(ledger Ledger) error {
		estimate, err := ledger.Estimates().FindByIDForTenant(ctx, tenantID, estimateID)
		if err != nil {
			return err
		}

		exists, err := ledger.Invoices().ExistsActiveForEstimate(ctx, tenantID, estimateID, invoiceType)
		if err != nil {
			return fmt.Errorf("failed to check existing invoice: %w", err)
		}
		if exists {
			return shared.ErrAlreadyExists.
				WithMessage("an active invoice of this type already exists for the estimate").
				WithDetail("invoice_type", string(invoiceType))
		}

		inv, err := billing.NewInvoiceFromEstimate(estimate, invoiceType, billing.AccountFromPtr(input.StripeAccountID))
		if err != nil {
			return err
		}
		w := s.writer(ledger, input.Actor)
		inv.CreatedAt, inv.UpdatedAt = w.now, w.now

		if err := ledger.Invoices().Create(ctx, inv); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		if err := w.audit(ctx, tenantID, billing.AuditInvoiceCreated, billing.EntityInvoice, inv.ID, inv.Snapshot()); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice created",
		zap.String("invoice_id", created.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("estimate_id", estimateID.String()),
		zap.String("type", string(created.Type)),
		zap.String("total", created.Total.StringFixed(2)))

	resp := ToInvoiceResponse(created, nil)
	return &resp, nil
}

// Get returns an invoice with its allocations
func (s *InvoiceService) Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.ledger.Invoices().FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	allocations, err := s.ledger.Allocations().ListByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, allocations)
	return &resp, nil
}

// Send creates (or reuses) a hosted checkout for the invoice and marks it sent.
// The processor call happens before the row is locked.
func (s *InvoiceService) Send(ctx context.Context, tenantID, invoiceID uuid.UUID) (*SendResult, error) {
	inv, err := s.ledger.Invoices().FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.EnsureCanSend(); err != nil {
		return nil, err
	}
	if url, ok := inv.ReusableCheckoutURL(s.now()); ok {
		return &SendResult{CheckoutURL: url, ExpiresAt: *inv.CheckoutExpiresAt, Reused: true}, nil
	}

	logger := s.logger.With(zap.String("invoice_id", inv.ID.String()), zap.String("tenant_id", tenantID.String()))
	logger.Debug("Creating checkout session",
		zap.String("amount_due", inv.AmountDue.StringFixed(2)),
		zap.String("account", inv.Account().String()))

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		IdempotencyKey:    fmt.Sprintf("invoice-%s-v%d", inv.ID, inv.Version),
		Account:           inv.Account(),
		Currency:          inv.Currency,
		Amount:            inv.AmountDue,
		Description:       fmt.Sprintf("Invoice %s", inv.ID),
		ClientReferenceID: inv.ID.String(),
		Metadata:          billing.InvoiceMetadata(tenantID, inv.ID),
	})
	if err != nil {
		logger.Error("Failed to create checkout session", zap.Error(err))
		return nil, err
	}

	var result *SendResult
	err = s.scope.Execute(ctx, func(ledger Ledger) error {
		locked, err := ledger.Invoices().FindForUpdate(ctx, tenantID, invoiceID, billing.NoAccount())
		if err != nil {
			return err
		}
		w := s.writer(ledger, nil)
		// A concurrent send may have committed while the session was being created
		if url, ok := locked.ReusableCheckoutURL(w.now); ok {
			result = &SendResult{CheckoutURL: url, ExpiresAt: *locked.CheckoutExpiresAt, Reused: true}
			return nil
		}
		previous := locked.Status
		if err := locked.MarkSent(*session, w.now); err != nil {
			return err
		}
		if err := w.saveInvoice(ctx, locked, previous); err != nil {
			return err
		}
		result = &SendResult{CheckoutURL: session.URL, ExpiresAt: session.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordOfflinePayment applies money received outside the processor
func (s *InvoiceService) RecordOfflinePayment(ctx context.Context, tenantID, invoiceID uuid.UUID, input OfflinePaymentInput) (*InvoiceResponse, error) {
	if !input.Amount.IsPositive() {
		return nil, shared.ErrInvalidInput.WithMessage("payment amount must be positive")
	}

	var (
		inv         *billing.Invoice
		allocations []billing.InvoiceAllocation
	)
	err := s.scope.Execute(ctx, func(ledger Ledger) error {
		var err error
		inv, err = ledger.Invoices().FindForUpdate(ctx, tenantID, invoiceID, billing.NoAccount())
		if err != nil {
			return err
		}
		if err := inv.EnsureCanAcceptAllocation("record payment on"); err != nil {
			return err
		}
		amount := billing.RoundMoney(input.Amount)
		if amount.GreaterThan(inv.AmountDue) {
			return billing.ErrExceedsAmountDue.
				WithDetail("amount", amount.StringFixed(2)).
				WithDetail("amount_due", inv.AmountDue.StringFixed(2))
		}

		w := s.writer(ledger, input.RecordedBy)
		payment, err := billing.NewOfflinePayment(inv, billing.OfflineSettlement{
			Amount:     amount,
			Instrument: input.Instrument,
			Notes:      input.Notes,
			RecordedBy: input.RecordedBy,
		}, w.now)
		if err != nil {
			return err
		}
		if err := w.applyPayment(ctx, inv, payment); err != nil {
			return err
		}
		allocations, err = ledger.Allocations().ListByInvoice(ctx, tenantID, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentRecorded(ctx, billing.PaymentMethodOffline)
	s.logger.Info("Offline payment recorded",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("amount", input.Amount.StringFixed(2)),
		zap.String("status", inv.Status.String()))

	resp := ToInvoiceResponse(inv, allocations)
	return &resp, nil
}

// Void cancels an invoice that has no allocations
func (s *InvoiceService) Void(ctx context.Context, tenantID, invoiceID uuid.UUID, reason string, actor *uuid.UUID) (*InvoiceResponse, error) {
	var inv *billing.Invoice
	err := s.scope.Execute(ctx, func(ledger Ledger) error {
		var err error
		inv, err = ledger.Invoices().FindForUpdate(ctx, tenantID, invoiceID, billing.NoAccount())
		if err != nil {
			return err
		}
		count, err := ledger.Allocations().CountByInvoice(ctx, tenantID, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to count allocations: %w", err)
		}
		w := s.writer(ledger, actor)
		previous := inv.Status
		if err := inv.Void(reason, count, w.now); err != nil {
			return err
		}
		return w.saveInvoice(ctx, inv, previous)
	})
	if err != nil {
		if errors.Is(err, billing.ErrRefundInsteadOfVoid) {
			s.logger.Info("Void rejected, invoice has payments", zap.String("invoice_id", invoiceID.String()))
		}
		return nil, err
	}

	resp := ToInvoiceResponse(inv, nil)
	return &resp, nil
}
