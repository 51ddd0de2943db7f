package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/domain"
)

// CommentRepository defines the interface for deal comment data access
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.DealComment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DealComment, error)
	FindByDeal(ctx context.Context, dealID uuid.UUID) ([]*domain.DealComment, error)
	Update(ctx context.Context, comment *domain.DealComment) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

type commentRepositoryImpl struct {
	db *gorm.DB
}

// NewCommentRepository creates a new instance of CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepositoryImpl{db: db}
}

func (r *commentRepositoryImpl) Create(ctx context.Context, comment *domain.DealComment) error {
	return dbFrom(ctx, r.db).Create(comment).Error
}

func (r *commentRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.DealComment, error) {
	var comment domain.DealComment
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// FindByDeal returns the flat comment list of a deal, oldest first
func (r *commentRepositoryImpl) FindByDeal(ctx context.Context, dealID uuid.UUID) ([]*domain.DealComment, error) {
	var comments []*domain.DealComment
	if err := dbFrom(ctx, r.db).
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepositoryImpl) Update(ctx context.Context, comment *domain.DealComment) error {
	return dbFrom(ctx, r.db).
		Model(comment).
		Updates(map[string]interface{}{
			"content":   comment.Content,
			"is_edited": comment.IsEdited,
		}).Error
}

func (r *commentRepositoryImpl) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbFrom(ctx, r.db).Where("id IN ?", ids).Delete(&domain.DealComment{}).Error
}
