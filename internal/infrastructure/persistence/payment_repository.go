package persistence

import (
	"context"
	"errors"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByPaymentIntent finds the payment recorded for a payment intent
func (r *GormPaymentRepository) FindByPaymentIntent(ctx context.Context, paymentIntentID string, account billing.AccountRef) (*billing.Payment, error) {
	return r.findOne(ctx, account, "payment_intent_id = ?", paymentIntentID)
}

// FindByCharge finds the payment recorded for a charge
func (r *GormPaymentRepository) FindByCharge(ctx context.Context, chargeID string, account billing.AccountRef) (*billing.Payment, error) {
	return r.findOne(ctx, account, "charge_id = ?", chargeID)
}

func (r *GormPaymentRepository) findOne(ctx context.Context, account billing.AccountRef, query string, args ...any) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
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

// ListByInvoice lists the payments of an invoice, oldest first
func (r *GormPaymentRepository) ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("paid_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]billing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	return r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error
}

// Save writes every mutable column of the payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND tenant_id = ?", payment.ID, payment.TenantID).
		Select("*").
		Omit("id", "tenant_id", "invoice_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)
