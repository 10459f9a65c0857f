package persistence

import (
	"context"
	"errors"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks ignore it.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// withAccount filters on the routing account only when one is present
func withAccount(account billing.AccountRef) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		id, ok := account.Get()
		if !ok {
			return db
		}
		return db.Where("stripe_account_id = ?", id)
	}
}

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant finds an invoice by ID within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForUpdate locks an invoice by ID within a tenant
func (r *GormInvoiceRepository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID, account billing.AccountRef) (*billing.Invoice, error) {
	return r.findLocked(ctx, account, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByCheckoutSessionForUpdate locks the invoice a checkout session was created for
func (r *GormInvoiceRepository) FindByCheckoutSessionForUpdate(ctx context.Context, sessionID string, account billing.AccountRef) (*billing.Invoice, error) {
	return r.findLocked(ctx, account, "checkout_session_id = ?", sessionID)
}

// FindByPaymentIntentForUpdate locks the invoice a payment intent was recorded on
func (r *GormInvoiceRepository) FindByPaymentIntentForUpdate(ctx context.Context, paymentIntentID string, account billing.AccountRef) (*billing.Invoice, error) {
	return r.findLocked(ctx, account, "payment_intent_id = ?", paymentIntentID)
}

// FindByDisputeForUpdate locks the invoice holding a dispute
func (r *GormInvoiceRepository) FindByDisputeForUpdate(ctx context.Context, disputeID string, account billing.AccountRef) (*billing.Invoice, error) {
	return r.findLocked(ctx, account, "dispute_id = ?", disputeID)
}

func (r *GormInvoiceRepository) findLocked(ctx context.Context, account billing.AccountRef, query string, args ...any) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := forUpdate(r.db.WithContext(ctx)).
		Scopes(withAccount(account)).
		Where(query, args...).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsActiveForEstimate checks for a non-voided invoice of the given type for an estimate
func (r *GormInvoiceRepository) ExistsActiveForEstimate(ctx context.Context, tenantID, estimateID uuid.UUID, invoiceType billing.InvoiceType) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND estimate_id = ? AND type = ? AND status <> ?",
			tenantID, estimateID, invoiceType, billing.InvoiceStatusVoided).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	return r.db.WithContext(ctx).Create(models.InvoiceModelFromDomain(invoice)).Error
}

// Save writes every column of the invoice when the stored version still matches,
// then bumps the version on the aggregate.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	model.Version = invoice.Version + 1

	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND tenant_id = ? AND version = ?", invoice.ID, invoice.TenantID, invoice.Version).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("invoice was modified by another transaction")
	}
	invoice.IncrementVersion()
	return nil
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
