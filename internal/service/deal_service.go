package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/client"
	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/metrics"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

// DealService defines the interface for deal business logic
type DealService interface {
	CreateDeal(ctx context.Context, req *dto.CreateDealRequest) (*dto.DealResponse, error)
	GetDeal(ctx context.Context, dealID uuid.UUID) (*dto.DealDetailResponse, error)
	ListDeals(ctx context.Context, filters *dto.DealFilters) (*dto.DealListResponse, error)
	UpdateDeal(ctx context.Context, dealID uuid.UUID, req *dto.UpdateDealRequest) (*dto.DealResponse, error)
	DeleteDeal(ctx context.Context, dealID uuid.UUID) error
	SearchDeals(ctx context.Context, query string) ([]dto.DealSearchResult, error)
	GetActivities(ctx context.Context, dealID uuid.UUID, limit int) ([]dto.ActivityResponse, error)
}

// dealServiceImpl is the implementation of DealService
type dealServiceImpl struct {
	dealRepo     repository.DealRepository
	clientRepo   repository.ClientRepository
	fileRepo     repository.DealFileRepository
	scheduleRepo repository.ScheduleRepository
	commentRepo  repository.CommentRepository
	activity     ActivityService
	tx           repository.Transactor
	s3Client     S3Client
	notifier     client.NotificationClient
	cache        BoardCache
	publisher    BoardPublisher
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewDealService creates a new instance of DealService. s3Client, notifier,
// cache and publisher may be nil.
func NewDealService(
	dealRepo repository.DealRepository,
	clientRepo repository.ClientRepository,
	fileRepo repository.DealFileRepository,
	scheduleRepo repository.ScheduleRepository,
	commentRepo repository.CommentRepository,
	activity ActivityService,
	tx repository.Transactor,
	s3Client S3Client,
	notifier client.NotificationClient,
	cache BoardCache,
	publisher BoardPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) DealService {
	if notifier == nil {
		notifier = client.NewNoOpNotificationClient()
	}
	if cache == nil {
		cache = noopBoardCache{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &dealServiceImpl{
		dealRepo:     dealRepo,
		clientRepo:   clientRepo,
		fileRepo:     fileRepo,
		scheduleRepo: scheduleRepo,
		commentRepo:  commentRepo,
		activity:     activity,
		tx:           tx,
		s3Client:     s3Client,
		notifier:     notifier,
		cache:        cache,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateDeal creates a new deal owned by the caller unless ownerId is given
func (s *dealServiceImpl) CreateDeal(ctx context.Context, req *dto.CreateDealRequest) (*dto.DealResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	stage := domain.StageNewRequest
	if req.Stage != "" {
		if stage, err = domain.ParseStage(req.Stage); err != nil {
			return nil, validationError(err.Error(), "stage")
		}
	}
	if stage.RequiresReason() {
		return nil, validationError(fmt.Sprintf("Deals enter %s through close, which records the reason", stage.Label()), "stage")
	}
	if err := checkNonNegative(req.EstimatedValue, "estimatedValue"); err != nil {
		return nil, err
	}
	expectedClose, err := parseDate(req.ExpectedCloseDate, "expectedCloseDate")
	if err != nil {
		return nil, err
	}

	clientEntity, err := s.clientRepo.FindByID(ctx, req.ClientID)
	if err != nil {
		return nil, lookupError(err, "Client not found", "Failed to verify client")
	}

	ownerID := actorID
	if req.OwnerID != nil && *req.OwnerID != uuid.Nil {
		ownerID = *req.OwnerID
	}
	probability := stage.DefaultProbability()
	if req.Probability != nil {
		probability = *req.Probability
	}

	now := s.now()
	deal := &domain.Deal{
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		ClientID:          req.ClientID,
		Stage:             stage,
		EstimatedValue:    req.EstimatedValue,
		Probability:       probability,
		ExpectedCloseDate: expectedClose,
		OwnerID:           ownerID,
		EstimatorID:       req.EstimatorID,
		SiteOfficerID:     req.SiteOfficerID,
		ProjectManagerID:  req.ProjectManagerID,
		CreatedByID:       uuidPtr(actorID),
		Version:           1,
	}
	domain.StampStageChange("", deal, now)
	if stage == domain.StageClosedWon && !deal.ActualValue.Valid {
		deal.ActualValue = deal.EstimatedValue
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		siblings, err := s.dealRepo.FindByStage(ctx, stage)
		if err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to fetch deals", err.Error())
		}
		deal.Position = len(siblings)

		if err := s.dealRepo.Create(ctx, deal); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to create deal", err.Error())
		}
		return s.activity.Record(ctx, ActivityEntry{
			DealID:      deal.ID,
			Type:        domain.ActivityCreated,
			Description: fmt.Sprintf("Deal created: %s", deal.Title),
			NewValue:    string(deal.Stage),
			UserID:      uuidPtr(actorID),
		})
	})
	if err != nil {
		return nil, writeError(err, "Failed to create deal")
	}
	deal.Client = clientEntity

	if s.metrics != nil {
		s.metrics.IncrementDealCreated()
	}
	s.logger.Info("Deal created",
		zap.String("deal_id", deal.ID.String()),
		zap.String("client_id", deal.ClientID.String()),
		zap.String("stage", string(deal.Stage)))

	s.cache.Invalidate(ctx)
	resp := toDealResponse(deal, now)
	s.publisher.Publish(EventDealChanged, &resp)
	s.notifyAssigned(ctx, deal, actorID, deal.AssignmentOf().NewlyAssigned(domain.Assignment{OwnerID: actorID}))

	return &resp, nil
}

// GetDeal returns a deal with its current files, latest activity, schedules
// and comment threads
func (s *dealServiceImpl) GetDeal(ctx context.Context, dealID uuid.UUID) (*dto.DealDetailResponse, error) {
	deal, err := s.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, lookupError(err, "Deal not found", "Failed to fetch deal")
	}

	files, err := s.fileRepo.FindByDeal(ctx, dealID, true)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch files", err.Error())
	}
	activities, err := s.activity.Feed(ctx, dealID, dto.DefaultActivityLimit)
	if err != nil {
		return nil, err
	}
	schedules, err := s.scheduleRepo.FindByDeal(ctx, dealID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch schedules", err.Error())
	}
	comments, err := s.commentRepo.FindByDeal(ctx, dealID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch comments", err.Error())
	}

	return &dto.DealDetailResponse{
		DealResponse: toDealResponse(deal, s.now()),
		Files:        toFileResponses(files),
		Activities:   activities,
		Schedules:    toScheduleResponses(schedules),
		Comments:     toCommentThreads(domain.BuildCommentTree(comments)),
	}, nil
}

// ListDeals returns one page of deals
func (s *dealServiceImpl) ListDeals(ctx context.Context, filters *dto.DealFilters) (*dto.DealListResponse, error) {
	filters.Normalize()
	if filters.Stage != "" {
		if _, err := domain.ParseStage(filters.Stage); err != nil {
			return nil, validationError(err.Error(), "stage")
		}
	}

	deals, total, err := s.dealRepo.List(ctx, filters)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch deals", err.Error())
	}

	return &dto.DealListResponse{
		Deals:    toDealResponses(deals, s.now()),
		Total:    total,
		Page:     filters.Page,
		PageSize: filters.PageSize,
	}, nil
}

// UpdateDeal replaces the editable fields of a deal. A stage change made here
// follows the same rules as a board move.
func (s *dealServiceImpl) UpdateDeal(ctx context.Context, dealID uuid.UUID, req *dto.UpdateDealRequest) (*dto.DealResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	stage, err := domain.ParseStage(req.Stage)
	if err != nil {
		return nil, validationError(err.Error(), "stage")
	}
	if err := validateUpdateReasons(stage, req); err != nil {
		return nil, err
	}
	if err := checkNonNegative(req.EstimatedValue, "estimatedValue"); err != nil {
		return nil, err
	}
	if err := checkNonNegative(req.ActualValue, "actualValue"); err != nil {
		return nil, err
	}
	expectedClose, err := parseDate(req.ExpectedCloseDate, "expectedCloseDate")
	if err != nil {
		return nil, err
	}

	var (
		prev         domain.Deal
		next         domain.Deal
		stageChanged bool
		newlyAdded   []uuid.UUID
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.dealRepo.FindByID(ctx, dealID)
		if err != nil {
			return lookupError(err, "Deal not found", "Failed to fetch deal")
		}
		if err := checkVersion(req.Version, current.Version); err != nil {
			return err
		}
		if current.ClientID != req.ClientID {
			clientEntity, err := s.clientRepo.FindByID(ctx, req.ClientID)
			if err != nil {
				return lookupError(err, "Client not found", "Failed to verify client")
			}
			current.Client = clientEntity
		}
		prev = *current

		next = prev
		next.Title = strings.TrimSpace(req.Title)
		next.Description = req.Description
		next.ClientID = req.ClientID
		next.Stage = stage
		next.ClosedLostReason = domain.ClosedLostReason(req.ClosedLostReason)
		next.DeclinedReason = domain.DeclinedReason(req.DeclinedReason)
		next.CloseNotes = req.CloseNotes
		next.EstimatedValue = req.EstimatedValue
		next.ActualValue = req.ActualValue
		next.Probability = req.Probability
		next.ExpectedCloseDate = expectedClose
		next.OwnerID = req.OwnerID
		next.EstimatorID = req.EstimatorID
		next.SiteOfficerID = req.SiteOfficerID
		next.ProjectManagerID = req.ProjectManagerID

		stageChanged, _ = domain.StampStageChange(prev.Stage, &next, s.now())
		if stageChanged && stage == domain.StageClosedWon && (!next.ActualValue.Valid || next.ActualValue.Decimal.IsZero()) {
			next.ActualValue = next.EstimatedValue
		}
		if stageChanged {
			siblings, err := s.dealRepo.FindByStage(ctx, stage)
			if err != nil {
				return response.NewAppError(response.ErrCodeInternal, "Failed to fetch deals", err.Error())
			}
			next.Position = len(siblings)
		}

		if err := s.dealRepo.Update(ctx, &next, prev.Version); err != nil {
			return writeError(err, "Failed to update deal")
		}

		newlyAdded = next.AssignmentOf().NewlyAssigned(prev.AssignmentOf())
		return s.activity.Record(ctx, editActivity(&prev, &next, stageChanged, actorID))
	})
	if err != nil {
		return nil, writeError(err, "Failed to update deal")
	}

	if stageChanged && s.metrics != nil {
		s.metrics.RecordStageTransition(string(prev.Stage), string(next.Stage))
		if next.Stage.IsClosed() && !prev.Stage.IsClosed() {
			s.metrics.IncrementDealClosed(next.Stage.Outcome())
		}
	}

	s.cache.Invalidate(ctx)
	resp := toDealResponse(&next, s.now())
	s.publisher.Publish(EventDealChanged, &resp)
	s.notifyAssigned(ctx, &next, actorID, newlyAdded)

	return &resp, nil
}

// DeleteDeal removes a deal with its files, activities, schedules and
// comments. Stored blobs are removed after the rows are gone.
func (s *dealServiceImpl) DeleteDeal(ctx context.Context, dealID uuid.UUID) error {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	var keys []string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.dealRepo.FindByID(ctx, dealID); err != nil {
			return lookupError(err, "Deal not found", "Failed to fetch deal")
		}
		found, err := s.fileRepo.StorageKeysByDeal(ctx, dealID)
		if err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to fetch files", err.Error())
		}
		keys = found
		if err := s.dealRepo.Delete(ctx, dealID); err != nil {
			return lookupError(err, "Deal not found", "Failed to delete deal")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, keys)
	s.logger.Info("Deal deleted",
		zap.String("deal_id", dealID.String()),
		zap.String("actor_id", actorID.String()),
		zap.Int("files", len(keys)))

	s.cache.Invalidate(ctx)
	s.publisher.Publish(EventDealChanged, map[string]interface{}{
		"dealId":  dealID,
		"deleted": true,
	})
	return nil
}

// SearchDeals matches title or client name. Queries shorter than two
// characters return nothing.
func (s *dealServiceImpl) SearchDeals(ctx context.Context, query string) ([]dto.DealSearchResult, error) {
	query = strings.TrimSpace(query)
	results := []dto.DealSearchResult{}
	if len([]rune(query)) < dto.MinSearchLength {
		return results, nil
	}

	deals, err := s.dealRepo.Search(ctx, query, dto.SearchLimit)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to search deals", err.Error())
	}
	for _, d := range deals {
		result := dto.DealSearchResult{
			ID:         d.ID,
			Title:      d.Title,
			Stage:      string(d.Stage),
			StageLabel: d.Stage.Label(),
		}
		if d.Client != nil {
			result.ClientName = d.Client.DisplayName()
		}
		results = append(results, result)
	}
	return results, nil
}

// GetActivities returns the newest entries of the deal's audit log
func (s *dealServiceImpl) GetActivities(ctx context.Context, dealID uuid.UUID, limit int) ([]dto.ActivityResponse, error) {
	return s.activity.Feed(ctx, dealID, limit)
}

func (s *dealServiceImpl) deleteBlobs(ctx context.Context, keys []string) {
	if s.s3Client == nil {
		return
	}
	for _, key := range keys {
		if err := s.s3Client.DeleteFile(ctx, key); err != nil {
			s.logger.Warn("Failed to delete stored file", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *dealServiceImpl) notifyAssigned(ctx context.Context, deal *domain.Deal, actorID uuid.UUID, users []uuid.UUID) {
	var events []client.NotificationEvent
	for _, userID := range users {
		if userID == actorID {
			continue
		}
		events = append(events, client.NotificationEvent{
			Type:         client.NotificationDealAssigned,
			ActorID:      actorID,
			TargetUserID: userID,
			ResourceType: client.ResourceDeal,
			ResourceID:   deal.ID,
			ResourceName: deal.Title,
			Metadata:     map[string]interface{}{"stage": string(deal.Stage)},
		})
	}
	if len(events) == 0 {
		return
	}
	if err := s.notifier.SendBulkNotifications(ctx, events); err != nil {
		s.logger.Warn("Failed to send assignment notifications",
			zap.String("deal_id", deal.ID.String()),
			zap.Error(err))
	}
}

func validateUpdateReasons(stage domain.Stage, req *dto.UpdateDealRequest) error {
	switch stage {
	case domain.StageClosedLost:
		if err := domain.ValidateReason(stage, req.ClosedLostReason); err != nil {
			return transitionError(err)
		}
	case domain.StageDeclinedToBid:
		if err := domain.ValidateReason(stage, req.DeclinedReason); err != nil {
			return transitionError(err)
		}
	}
	if req.ClosedLostReason != "" && !domain.ClosedLostReason(req.ClosedLostReason).Valid() {
		return validationError(fmt.Sprintf("invalid closed lost reason %q", req.ClosedLostReason), "closedLostReason")
	}
	if req.DeclinedReason != "" && !domain.DeclinedReason(req.DeclinedReason).Valid() {
		return validationError(fmt.Sprintf("invalid declined reason %q", req.DeclinedReason), "declinedReason")
	}
	return nil
}

// editActivity classifies an edit: a stage change wins, then a pure
// reassignment, then a generic edit listing the changed fields
func editActivity(prev, next *domain.Deal, stageChanged bool, actorID uuid.UUID) ActivityEntry {
	entry := ActivityEntry{DealID: next.ID, UserID: uuidPtr(actorID)}
	changed := changedFields(prev, next)
	assignmentChanged := !prev.AssignmentOf().Equal(next.AssignmentOf())

	switch {
	case stageChanged:
		entry.Type = domain.ActivityStageChanged
		entry.OldValue = string(prev.Stage)
		entry.NewValue = string(next.Stage)
		entry.Description = fmt.Sprintf("Stage changed from %s to %s", prev.Stage.Label(), next.Stage.Label())
	case assignmentChanged && len(changed) == 0:
		entry.Type = domain.ActivityAssigned
		entry.OldValue = prev.OwnerID.String()
		entry.NewValue = next.OwnerID.String()
		entry.Description = "Assignment changed"
	default:
		entry.Type = domain.ActivityEdited
		entry.Description = fmt.Sprintf("Deal edited: %s", next.Title)
	}

	if assignmentChanged {
		changed = append(changed, "assignment")
	}
	if len(changed) > 0 {
		entry.Metadata = map[string]interface{}{"changed": changed}
	}
	return entry
}

// changedFields lists the non-stage, non-assignment fields that differ
func changedFields(prev, next *domain.Deal) []string {
	var changed []string
	add := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}
	add("title", prev.Title != next.Title)
	add("description", prev.Description != next.Description)
	add("clientId", prev.ClientID != next.ClientID)
	add("closedLostReason", prev.ClosedLostReason != next.ClosedLostReason)
	add("declinedReason", prev.DeclinedReason != next.DeclinedReason)
	add("closeNotes", prev.CloseNotes != next.CloseNotes)
	add("estimatedValue", !sameDecimal(prev.EstimatedValue, next.EstimatedValue))
	add("actualValue", !sameDecimal(prev.ActualValue, next.ActualValue))
	add("probability", prev.Probability != next.Probability)
	add("expectedCloseDate", !sameString(formatDate(prev.ExpectedCloseDate), formatDate(next.ExpectedCloseDate)))
	return changed
}

func sameDecimal(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
