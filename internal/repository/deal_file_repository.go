package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/domain"
)

// DealFileRepository defines the interface for deal file data access
type DealFileRepository interface {
	Create(ctx context.Context, file *domain.DealFile) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DealFile, error)
	FindCurrentByName(ctx context.Context, dealID uuid.UUID, filename string) (*domain.DealFile, error)
	FindByDeal(ctx context.Context, dealID uuid.UUID, currentOnly bool) ([]*domain.DealFile, error)
	MarkNotCurrent(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	StorageKeysByDeal(ctx context.Context, dealID uuid.UUID) ([]string, error)
}

// dealFileRepositoryImpl is the GORM implementation of DealFileRepository
type dealFileRepositoryImpl struct {
	db *gorm.DB
}

// NewDealFileRepository creates a new instance of DealFileRepository
func NewDealFileRepository(db *gorm.DB) DealFileRepository {
	return &dealFileRepositoryImpl{db: db}
}

// Create creates a new file version
func (r *dealFileRepositoryImpl) Create(ctx context.Context, file *domain.DealFile) error {
	if err := dbFrom(ctx, r.db).Create(file).Error; err != nil {
		return err
	}
	return nil
}

// FindByID finds a file version by its ID
func (r *dealFileRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.DealFile, error) {
	var file domain.DealFile
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// FindCurrentByName returns the current version of a filename on a deal, or
// nil when there is none
func (r *dealFileRepositoryImpl) FindCurrentByName(ctx context.Context, dealID uuid.UUID, filename string) (*domain.DealFile, error) {
	var file domain.DealFile
	err := dbFrom(ctx, r.db).
		Where("deal_id = ? AND original_filename = ? AND is_current = ?", dealID, filename, true).
		Order("version DESC").
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// FindByDeal lists a deal's files, newest upload first
func (r *dealFileRepositoryImpl) FindByDeal(ctx context.Context, dealID uuid.UUID, currentOnly bool) ([]*domain.DealFile, error) {
	query := dbFrom(ctx, r.db).Where("deal_id = ?", dealID)
	if currentOnly {
		query = query.Where("is_current = ?", true)
	}

	var files []*domain.DealFile
	if err := query.
		Order("uploaded_at DESC").
		Order("version DESC").
		Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// MarkNotCurrent demotes a file version
func (r *dealFileRepositoryImpl) MarkNotCurrent(ctx context.Context, id uuid.UUID) error {
	return dbFrom(ctx, r.db).
		Model(&domain.DealFile{}).
		Where("id = ?", id).
		Update("is_current", false).Error
}

// Delete removes a file version row. Newer versions pointing at it keep a
// dangling previous_version_id, which history walks stop at.
func (r *dealFileRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result := dbFrom(ctx, r.db).Where("id = ?", id).Delete(&domain.DealFile{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// StorageKeysByDeal lists the blob keys of every version on a deal
func (r *dealFileRepositoryImpl) StorageKeysByDeal(ctx context.Context, dealID uuid.UUID) ([]string, error) {
	var keys []string
	if err := dbFrom(ctx, r.db).
		Model(&domain.DealFile{}).
		Where("deal_id = ?", dealID).
		Pluck("storage_key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
