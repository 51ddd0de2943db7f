package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
)

const likeEscape = " ESCAPE '\\'"

// DealRepository defines the interface for deal data access
type DealRepository interface {
	Create(ctx context.Context, deal *domain.Deal) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error)
	Update(ctx context.Context, deal *domain.Deal, expectedVersion int) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *dto.DealFilters) ([]*domain.Deal, int64, error)
	ListAll(ctx context.Context, filters *dto.DealFilters) ([]*domain.Deal, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Deal, error)
	FindForBoard(ctx context.Context, filters dto.BoardFilters) ([]*domain.Deal, error)
	FindByStage(ctx context.Context, stage domain.Stage) ([]*domain.Deal, error)
	UpdatePositions(ctx context.Context, orderedIDs []uuid.UUID) error
	CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error)
}

// dealRepositoryImpl is the GORM implementation of DealRepository
type dealRepositoryImpl struct {
	db *gorm.DB
}

// NewDealRepository creates a new instance of DealRepository
func NewDealRepository(db *gorm.DB) DealRepository {
	return &dealRepositoryImpl{db: db}
}

// Create creates a new deal
func (r *dealRepositoryImpl) Create(ctx context.Context, deal *domain.Deal) error {
	return dbFrom(ctx, r.db).Omit(clause.Associations).Create(deal).Error
}

// FindByID finds a deal by ID with its client
func (r *dealRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	if err := dbFrom(ctx, r.db).
		Preload("Client").
		Where("deals.id = ?", id).
		First(&deal).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

// Update writes every column of deal if the stored version still equals
// expectedVersion, and bumps the version. ErrVersionConflict means nothing was
// written.
func (r *dealRepositoryImpl) Update(ctx context.Context, deal *domain.Deal, expectedVersion int) error {
	deal.Version = expectedVersion + 1
	result := dbFrom(ctx, r.db).
		Model(deal).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit(clause.Associations, "id", "created_at").
		Updates(deal)
	if result.Error != nil {
		deal.Version = expectedVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		deal.Version = expectedVersion
		return ErrVersionConflict
	}
	return nil
}

// Delete removes a deal together with the rows it owns
func (r *dealRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	db := dbFrom(ctx, r.db)
	for _, owned := range []interface{}{
		&domain.DealComment{},
		&domain.DealSchedule{},
		&domain.DealFile{},
		&domain.DealActivity{},
	} {
		if err := db.Where("deal_id = ?", id).Delete(owned).Error; err != nil {
			return err
		}
	}

	result := db.Where("id = ?", id).Delete(&domain.Deal{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *dealRepositoryImpl) filtered(ctx context.Context, filters *dto.DealFilters) *gorm.DB {
	query := dbFrom(ctx, r.db).Model(&domain.Deal{})
	if filters.Stage != "" {
		query = query.Where("deals.stage = ?", filters.Stage)
	}
	if filters.OwnerID != nil {
		query = query.Where("deals.owner_id = ?", *filters.OwnerID)
	}
	if filters.ClientID != nil {
		query = query.Where("deals.client_id = ?", *filters.ClientID)
	}
	if filters.Query != "" {
		pattern := likePattern(filters.Query)
		query = query.
			Joins("LEFT JOIN clients ON clients.id = deals.client_id").
			Where(
				"LOWER(deals.title) LIKE ?"+likeEscape+
					" OR LOWER(deals.description) LIKE ?"+likeEscape+
					" OR LOWER(clients.company_name) LIKE ?"+likeEscape,
				pattern, pattern, pattern,
			)
	}
	return query
}

// List returns one page of deals matching filters and the total match count
func (r *dealRepositoryImpl) List(ctx context.Context, filters *dto.DealFilters) ([]*domain.Deal, int64, error) {
	var total int64
	if err := r.filtered(ctx, filters).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var deals []*domain.Deal
	if err := r.filtered(ctx, filters).
		Preload("Client").
		Order(filters.OrderClause()).
		Order("deals.id").
		Offset(filters.Offset()).
		Limit(filters.PageSize).
		Find(&deals).Error; err != nil {
		return nil, 0, err
	}
	return deals, total, nil
}

// ListAll returns every deal matching filters, unpaged
func (r *dealRepositoryImpl) ListAll(ctx context.Context, filters *dto.DealFilters) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	if err := r.filtered(ctx, filters).
		Preload("Client").
		Order(filters.OrderClause()).
		Order("deals.id").
		Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// Search matches the title or client name, most recently created first
func (r *dealRepositoryImpl) Search(ctx context.Context, query string, limit int) ([]*domain.Deal, error) {
	pattern := likePattern(query)
	var deals []*domain.Deal
	if err := dbFrom(ctx, r.db).
		Preload("Client").
		Joins("LEFT JOIN clients ON clients.id = deals.client_id").
		Where("LOWER(deals.title) LIKE ?"+likeEscape+" OR LOWER(clients.company_name) LIKE ?"+likeEscape, pattern, pattern).
		Order("deals.created_at DESC").
		Limit(limit).
		Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// FindForBoard returns the deals shown on the board in column order
func (r *dealRepositoryImpl) FindForBoard(ctx context.Context, filters dto.BoardFilters) ([]*domain.Deal, error) {
	query := dbFrom(ctx, r.db).Preload("Client")
	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}

	var deals []*domain.Deal
	if err := query.
		Order("position ASC").
		Order("created_at DESC").
		Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// FindByStage returns the deals of one column in display order
func (r *dealRepositoryImpl) FindByStage(ctx context.Context, stage domain.Stage) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	if err := dbFrom(ctx, r.db).
		Where("stage = ?", stage).
		Order("position ASC").
		Order("created_at DESC").
		Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// UpdatePositions stores each deal's index in orderedIDs as its position.
// Positions are display metadata and do not bump the version.
func (r *dealRepositoryImpl) UpdatePositions(ctx context.Context, orderedIDs []uuid.UUID) error {
	db := dbFrom(ctx, r.db)
	for i, id := range orderedIDs {
		if err := db.Model(&domain.Deal{}).
			Where("id = ?", id).
			UpdateColumn("position", i).Error; err != nil {
			return err
		}
	}
	return nil
}

// CountByClient counts the deals referencing a client
func (r *dealRepositoryImpl) CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error) {
	var count int64
	if err := dbFrom(ctx, r.db).
		Model(&domain.Deal{}).
		Where("client_id = ?", clientID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
