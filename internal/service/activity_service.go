package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

// maxActivityValueLength matches the old_value/new_value column width
const maxActivityValueLength = 255

// ActivityEntry is one audit record to append
type ActivityEntry struct {
	DealID      uuid.UUID
	Type        domain.ActivityType
	Description string
	OldValue    string
	NewValue    string
	Metadata    interface{}
	UserID      *uuid.UUID
}

// ActivityService appends to and reads the per-deal audit log
type ActivityService interface {
	// Record appends entry using the transaction carried by ctx, if any
	Record(ctx context.Context, entry ActivityEntry) error
	Feed(ctx context.Context, dealID uuid.UUID, limit int) ([]dto.ActivityResponse, error)
}

type activityServiceImpl struct {
	activityRepo repository.ActivityRepository
	dealRepo     repository.DealRepository
	logger       *zap.Logger
}

// NewActivityService creates a new instance of ActivityService
func NewActivityService(activityRepo repository.ActivityRepository, dealRepo repository.DealRepository, logger *zap.Logger) ActivityService {
	return &activityServiceImpl{
		activityRepo: activityRepo,
		dealRepo:     dealRepo,
		logger:       logger,
	}
}

func (s *activityServiceImpl) Record(ctx context.Context, entry ActivityEntry) error {
	if !entry.Type.Valid() {
		return fmt.Errorf("invalid activity type: %q", entry.Type)
	}

	activity := &domain.DealActivity{
		DealID:       entry.DealID,
		ActivityType: entry.Type,
		Description:  entry.Description,
		OldValue:     truncate(entry.OldValue, maxActivityValueLength),
		NewValue:     truncate(entry.NewValue, maxActivityValueLength),
		UserID:       entry.UserID,
	}
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		activity.Metadata = datatypes.JSON(raw)
	}

	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Error("Failed to append deal activity",
			zap.String("deal_id", entry.DealID.String()),
			zap.String("activity_type", string(entry.Type)),
			zap.Error(err))
		return err
	}
	return nil
}

// Feed returns the newest entries first
func (s *activityServiceImpl) Feed(ctx context.Context, dealID uuid.UUID, limit int) ([]dto.ActivityResponse, error) {
	if _, err := s.dealRepo.FindByID(ctx, dealID); err != nil {
		return nil, lookupError(err, "Deal not found", "Failed to fetch deal")
	}

	activities, err := s.activityRepo.FindRecent(ctx, dealID, dto.ClampActivityLimit(limit))
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch activities", err.Error())
	}
	return toActivityResponses(activities), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
