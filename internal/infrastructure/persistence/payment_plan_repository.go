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

// GormPaymentPlanRepository implements PaymentPlanRepository using GORM
type GormPaymentPlanRepository struct {
	db *gorm.DB
}

// NewGormPaymentPlanRepository creates a new GormPaymentPlanRepository
func NewGormPaymentPlanRepository(db *gorm.DB) *GormPaymentPlanRepository {
	return &GormPaymentPlanRepository{db: db}
}

// FindByIDForTenant finds a plan with its items
func (r *GormPaymentPlanRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.PaymentPlan, error) {
	return r.find(ctx, r.db.WithContext(ctx), billing.NoAccount(), tenantID, id)
}

// FindForUpdate locks a plan row and loads its items
func (r *GormPaymentPlanRepository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID, account billing.AccountRef) (*billing.PaymentPlan, error) {
	return r.find(ctx, forUpdate(r.db.WithContext(ctx)), account, tenantID, id)
}

func (r *GormPaymentPlanRepository) find(ctx context.Context, query *gorm.DB, account billing.AccountRef, tenantID, id uuid.UUID) (*billing.PaymentPlan, error) {
	var model models.PaymentPlanModel
	if err := query.
		Scopes(withAccount(account)).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	// Items are loaded separately so the row lock stays on the plan row
	if err := r.db.WithContext(ctx).
		Where("plan_id = ?", model.ID).
		Order("sequence ASC").
		Find(&model.Items).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a plan and its items
func (r *GormPaymentPlanRepository) Create(ctx context.Context, plan *billing.PaymentPlan) error {
	return r.db.WithContext(ctx).Create(models.PaymentPlanModelFromDomain(plan)).Error
}

// Save updates the plan with optimistic locking, then rewrites each item
func (r *GormPaymentPlanRepository) Save(ctx context.Context, plan *billing.PaymentPlan) error {
	model := models.PaymentPlanModelFromDomain(plan)
	items := model.Items
	model.Items = nil
	model.Version = plan.Version + 1

	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND tenant_id = ? AND version = ?", plan.ID, plan.TenantID, plan.Version).
		Select("*").
		Omit("id", "tenant_id", "created_at", "Items").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("payment plan was modified by another transaction")
	}

	for i := range items {
		item := items[i]
		if err := r.db.WithContext(ctx).
			Model(&item).
			Where("id = ? AND plan_id = ?", item.ID, plan.ID).
			Select("*").
			Omit("id", "plan_id").
			Updates(&item).Error; err != nil {
			return err
		}
	}
	plan.IncrementVersion()
	return nil
}

// Ensure GormPaymentPlanRepository implements PaymentPlanRepository
var _ billing.PaymentPlanRepository = (*GormPaymentPlanRepository)(nil)
