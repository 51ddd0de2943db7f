package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/domain"
)

// ActivityRepository appends to and reads the deal audit log.
// Entries are never updated or deleted.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.DealActivity) error
	FindRecent(ctx context.Context, dealID uuid.UUID, limit int) ([]*domain.DealActivity, error)
	CountByDeal(ctx context.Context, dealID uuid.UUID) (int64, error)
}

type activityRepositoryImpl struct {
	db *gorm.DB
}

// NewActivityRepository creates a new instance of ActivityRepository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepositoryImpl{db: db}
}

func (r *activityRepositoryImpl) Create(ctx context.Context, activity *domain.DealActivity) error {
	return dbFrom(ctx, r.db).Create(activity).Error
}

// FindRecent returns the newest entries of a deal first
func (r *activityRepositoryImpl) FindRecent(ctx context.Context, dealID uuid.UUID, limit int) ([]*domain.DealActivity, error) {
	var activities []*domain.DealActivity
	if err := dbFrom(ctx, r.db).
		Where("deal_id = ?", dealID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepositoryImpl) CountByDeal(ctx context.Context, dealID uuid.UUID) (int64, error) {
	var count int64
	if err := dbFrom(ctx, r.db).
		Model(&domain.DealActivity{}).
		Where("deal_id = ?", dealID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
