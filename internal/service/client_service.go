package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

// ClientService defines the interface for client business logic
type ClientService interface {
	CreateClient(ctx context.Context, req *dto.ClientRequest) (*dto.ClientResponse, error)
	GetClient(ctx context.Context, clientID uuid.UUID) (*dto.ClientResponse, error)
	ListClients(ctx context.Context, filters *dto.ClientFilters) (*dto.ClientListResponse, error)
	SearchClients(ctx context.Context, query string) ([]dto.ClientSearchResult, error)
	UpdateClient(ctx context.Context, clientID uuid.UUID, req *dto.ClientRequest) (*dto.ClientResponse, error)
	DeleteClient(ctx context.Context, clientID uuid.UUID) error
}

// clientServiceImpl is the implementation of ClientService
type clientServiceImpl struct {
	clientRepo repository.ClientRepository
	dealRepo   repository.DealRepository
	logger     *zap.Logger
}

// NewClientService creates a new instance of ClientService
func NewClientService(clientRepo repository.ClientRepository, dealRepo repository.DealRepository, logger *zap.Logger) ClientService {
	return &clientServiceImpl{
		clientRepo: clientRepo,
		dealRepo:   dealRepo,
		logger:     logger,
	}
}

func (s *clientServiceImpl) CreateClient(ctx context.Context, req *dto.ClientRequest) (*dto.ClientResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	c := &domain.Client{CreatedByID: uuidPtr(actorID)}
	if err := applyClientRequest(c, req); err != nil {
		return nil, err
	}
	if err := s.clientRepo.Create(ctx, c); err != nil {
		s.logger.Error("Failed to create client", zap.Error(err))
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to create client", err.Error())
	}

	s.logger.Info("Client created",
		zap.String("client_id", c.ID.String()),
		zap.String("company_name", c.CompanyName))

	resp := toClientResponse(c, repository.ClientDealStats{})
	return &resp, nil
}

func (s *clientServiceImpl) GetClient(ctx context.Context, clientID uuid.UUID) (*dto.ClientResponse, error) {
	c, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, lookupError(err, "Client not found", "Failed to fetch client")
	}

	stats, err := s.clientRepo.DealStats(ctx, []uuid.UUID{clientID})
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch client deals", err.Error())
	}
	resp := toClientResponse(c, stats[clientID])
	return &resp, nil
}

// ListClients returns one page of clients with their deal count and value
func (s *clientServiceImpl) ListClients(ctx context.Context, filters *dto.ClientFilters) (*dto.ClientListResponse, error) {
	filters.Normalize()
	if filters.Status != "" && !domain.ClientStatus(filters.Status).Valid() {
		return nil, validationError(fmt.Sprintf("invalid client status %q", filters.Status), "status")
	}

	clients, total, err := s.clientRepo.List(ctx, filters)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch clients", err.Error())
	}

	ids := make([]uuid.UUID, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	stats, err := s.clientRepo.DealStats(ctx, ids)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch client deals", err.Error())
	}

	out := make([]dto.ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c, stats[c.ID]))
	}
	return &dto.ClientListResponse{
		Clients:  out,
		Total:    total,
		Page:     filters.Page,
		PageSize: filters.PageSize,
	}, nil
}

// SearchClients answers autocomplete. Queries under two characters match
// nothing.
func (s *clientServiceImpl) SearchClients(ctx context.Context, query string) ([]dto.ClientSearchResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < dto.MinSearchLength {
		return []dto.ClientSearchResult{}, nil
	}

	clients, err := s.clientRepo.Search(ctx, query, dto.SearchLimit)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to search clients", err.Error())
	}
	out := make([]dto.ClientSearchResult, 0, len(clients))
	for _, c := range clients {
		out = append(out, dto.ClientSearchResult{
			ID:           c.ID,
			CompanyName:  c.CompanyName,
			ContactName:  c.ContactName,
			ContactEmail: c.ContactEmail,
		})
	}
	return out, nil
}

func (s *clientServiceImpl) UpdateClient(ctx context.Context, clientID uuid.UUID, req *dto.ClientRequest) (*dto.ClientResponse, error) {
	c, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, lookupError(err, "Client not found", "Failed to fetch client")
	}
	if err := applyClientRequest(c, req); err != nil {
		return nil, err
	}
	if err := s.clientRepo.Update(ctx, c); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to update client", err.Error())
	}

	stats, err := s.clientRepo.DealStats(ctx, []uuid.UUID{clientID})
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch client deals", err.Error())
	}
	resp := toClientResponse(c, stats[clientID])
	return &resp, nil
}

// DeleteClient refuses while any deal still references the client
func (s *clientServiceImpl) DeleteClient(ctx context.Context, clientID uuid.UUID) error {
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return lookupError(err, "Client not found", "Failed to fetch client")
	}

	count, err := s.dealRepo.CountByClient(ctx, clientID)
	if err != nil {
		return response.NewAppError(response.ErrCodeInternal, "Failed to count client deals", err.Error())
	}
	if count > 0 {
		return response.NewAppError(response.ErrCodeConflict,
			fmt.Sprintf("Client has %d deal(s) and cannot be deleted", count), "dealCount")
	}

	if err := s.clientRepo.Delete(ctx, clientID); err != nil {
		return lookupError(err, "Client not found", "Failed to delete client")
	}
	s.logger.Info("Client deleted", zap.String("client_id", clientID.String()))
	return nil
}

func applyClientRequest(c *domain.Client, req *dto.ClientRequest) error {
	name := strings.TrimSpace(req.CompanyName)
	if name == "" {
		return validationError("Company name is required", "companyName")
	}

	status := domain.ClientStatusProspect
	if req.Status != "" {
		status = domain.ClientStatus(strings.ToUpper(req.Status))
	}
	if !status.Valid() {
		return validationError(fmt.Sprintf("invalid client status %q", req.Status), "status")
	}
	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = "USA"
	}

	c.CompanyName = name
	c.Industry = strings.TrimSpace(req.Industry)
	c.Website = strings.TrimSpace(req.Website)
	c.ContactName = strings.TrimSpace(req.ContactName)
	c.ContactEmail = strings.ToLower(strings.TrimSpace(req.ContactEmail))
	c.ContactPhone = strings.TrimSpace(req.ContactPhone)
	c.ContactTitle = strings.TrimSpace(req.ContactTitle)
	c.AddressLine1 = strings.TrimSpace(req.AddressLine1)
	c.AddressLine2 = strings.TrimSpace(req.AddressLine2)
	c.City = strings.TrimSpace(req.City)
	c.State = strings.TrimSpace(req.State)
	c.PostalCode = strings.TrimSpace(req.PostalCode)
	c.Country = country
	c.Status = status
	c.Notes = req.Notes
	return nil
}
