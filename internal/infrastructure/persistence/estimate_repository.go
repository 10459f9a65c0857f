package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormEstimateRepository implements EstimateRepository using GORM
type GormEstimateRepository struct {
	db *gorm.DB
}

// NewGormEstimateRepository creates a new GormEstimateRepository
func NewGormEstimateRepository(db *gorm.DB) *GormEstimateRepository {
	return &GormEstimateRepository{db: db}
}

// FindByIDForTenant finds an estimate by ID within a tenant
func (r *GormEstimateRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Estimate, error) {
	var model models.EstimateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	est, err := model.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to decode estimate snapshot: %w", err)
	}
	return est, nil
}

// Create inserts an estimate
func (r *GormEstimateRepository) Create(ctx context.Context, estimate *billing.Estimate) error {
	model, err := models.EstimateModelFromDomain(estimate)
	if err != nil {
		return fmt.Errorf("failed to encode estimate snapshot: %w", err)
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Ensure GormEstimateRepository implements EstimateRepository
var _ billing.EstimateRepository = (*GormEstimateRepository)(nil)
