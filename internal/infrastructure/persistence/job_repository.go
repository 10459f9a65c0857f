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

// GormJobRepository implements JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// FindForUpdate locks a job within a tenant
func (r *GormJobRepository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*billing.Job, error) {
	var model models.JobModel
	if err := forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a job row
func (r *GormJobRepository) Create(ctx context.Context, job *billing.Job) error {
	return r.db.WithContext(ctx).Create(&models.JobModel{
		ID:          job.ID,
		TenantID:    job.TenantID,
		DepositPaid: job.DepositPaid,
		CreatedAt:   job.UpdatedAt,
		UpdatedAt:   job.UpdatedAt,
	}).Error
}

// SaveDepositGate writes only the deposit gate column
func (r *GormJobRepository) SaveDepositGate(ctx context.Context, job *billing.Job) error {
	result := r.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("tenant_id = ? AND id = ?", job.TenantID, job.ID).
		Updates(map[string]any{
			"deposit_paid": job.DepositPaid,
			"updated_at":   job.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormJobRepository implements JobRepository
var _ billing.JobRepository = (*GormJobRepository)(nil)
