package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
)

// ClientDealStats summarises the deals of one client
type ClientDealStats struct {
	Count int64
	Value decimal.Decimal
}

// ClientRepository defines the interface for client data access
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *dto.ClientFilters) ([]*domain.Client, int64, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Client, error)
	DealStats(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]ClientDealStats, error)
}

type clientRepositoryImpl struct {
	db *gorm.DB
}

// NewClientRepository creates a new instance of ClientRepository
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepositoryImpl{db: db}
}

func (r *clientRepositoryImpl) Create(ctx context.Context, client *domain.Client) error {
	return dbFrom(ctx, r.db).Create(client).Error
}

func (r *clientRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepositoryImpl) Update(ctx context.Context, client *domain.Client) error {
	return dbFrom(ctx, r.db).Save(client).Error
}

// Delete removes a client. Callers check for referencing deals first.
func (r *clientRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result := dbFrom(ctx, r.db).Where("id = ?", id).Delete(&domain.Client{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *clientRepositoryImpl) filtered(ctx context.Context, filters *dto.ClientFilters) *gorm.DB {
	query := dbFrom(ctx, r.db).Model(&domain.Client{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Query != "" {
		pattern := likePattern(filters.Query)
		query = query.Where(
			"LOWER(company_name) LIKE ?"+likeEscape+
				" OR LOWER(contact_name) LIKE ?"+likeEscape+
				" OR LOWER(contact_email) LIKE ?"+likeEscape,
			pattern, pattern, pattern,
		)
	}
	return query
}

// List returns one page of clients and the total match count
func (r *clientRepositoryImpl) List(ctx context.Context, filters *dto.ClientFilters) ([]*domain.Client, int64, error) {
	var total int64
	if err := r.filtered(ctx, filters).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var clients []*domain.Client
	if err := r.filtered(ctx, filters).
		Order(filters.OrderClause()).
		Order("clients.id").
		Offset(filters.Offset()).
		Limit(filters.PageSize).
		Find(&clients).Error; err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// Search matches company or contact name for autocomplete
func (r *clientRepositoryImpl) Search(ctx context.Context, query string, limit int) ([]*domain.Client, error) {
	pattern := likePattern(query)
	var clients []*domain.Client
	if err := dbFrom(ctx, r.db).
		Where("LOWER(company_name) LIKE ?"+likeEscape+" OR LOWER(contact_name) LIKE ?"+likeEscape, pattern, pattern).
		Order("company_name ASC").
		Limit(limit).
		Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// DealStats counts deals and sums their estimated value per client.
// Clients without deals are absent from the result.
func (r *clientRepositoryImpl) DealStats(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]ClientDealStats, error) {
	stats := make(map[uuid.UUID]ClientDealStats, len(clientIDs))
	if len(clientIDs) == 0 {
		return stats, nil
	}

	var deals []domain.Deal
	if err := dbFrom(ctx, r.db).
		Select("client_id", "estimated_value").
		Where("client_id IN ?", clientIDs).
		Find(&deals).Error; err != nil {
		return nil, err
	}

	for i := range deals {
		s := stats[deals[i].ClientID]
		s.Count++
		s.Value = s.Value.Add(deals[i].EstimatedOrZero())
		stats[deals[i].ClientID] = s
	}
	return stats, nil
}
