package persistence

import (
	"context"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProcessedEventRepository implements ProcessedEventRepository using GORM
type GormProcessedEventRepository struct {
	db *gorm.DB
}

// NewGormProcessedEventRepository creates a new GormProcessedEventRepository
func NewGormProcessedEventRepository(db *gorm.DB) *GormProcessedEventRepository {
	return &GormProcessedEventRepository{db: db}
}

// Exists reports whether the event id has already been claimed
func (r *GormProcessedEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProcessedEventModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Claim inserts the event with ON CONFLICT DO NOTHING. A concurrent claimer of the
// same id blocks on the primary key until this transaction ends, then inserts nothing.
func (r *GormProcessedEventRepository) Claim(ctx context.Context, event *billing.ProcessedEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(models.ProcessedEventModelFromDomain(event))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Ensure GormProcessedEventRepository implements ProcessedEventRepository
var _ billing.ProcessedEventRepository = (*GormProcessedEventRepository)(nil)
