package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

// maxScheduleRange bounds the calendar query window
const maxScheduleRange = 366 * 24 * time.Hour

const clockLayout = "15:04"

// ScheduleService defines the interface for deal schedule business logic
type ScheduleService interface {
	CreateSchedule(ctx context.Context, dealID uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error)
	GetSchedule(ctx context.Context, scheduleID uuid.UUID) (*dto.ScheduleResponse, error)
	ListDealSchedules(ctx context.Context, dealID uuid.UUID) ([]dto.ScheduleResponse, error)
	ListSchedules(ctx context.Context, filter dto.ScheduleRangeFilter) ([]dto.ScheduleResponse, error)
	UpdateSchedule(ctx context.Context, scheduleID uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error)
	UpdateStatus(ctx context.Context, scheduleID uuid.UUID, req *dto.UpdateScheduleStatusRequest) (*dto.ScheduleResponse, error)
	CompleteSchedule(ctx context.Context, scheduleID uuid.UUID, req *dto.CompleteScheduleRequest) (*dto.ScheduleResponse, error)
	DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error
}

// scheduleServiceImpl is the implementation of ScheduleService
type scheduleServiceImpl struct {
	scheduleRepo repository.ScheduleRepository
	dealRepo     repository.DealRepository
	activity     ActivityService
	tx           repository.Transactor
	logger       *zap.Logger
	now          func() time.Time
}

// NewScheduleService creates a new instance of ScheduleService
func NewScheduleService(
	scheduleRepo repository.ScheduleRepository,
	dealRepo repository.DealRepository,
	activity ActivityService,
	tx repository.Transactor,
	logger *zap.Logger,
) ScheduleService {
	return &scheduleServiceImpl{
		scheduleRepo: scheduleRepo,
		dealRepo:     dealRepo,
		activity:     activity,
		tx:           tx,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *scheduleServiceImpl) CreateSchedule(ctx context.Context, dealID uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	schedule := &domain.DealSchedule{
		DealID:      dealID,
		Status:      domain.ScheduleNewRequest,
		CreatedByID: uuidPtr(actorID),
		Version:     1,
	}
	if err := s.applyRequest(schedule, req); err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.dealRepo.FindByID(ctx, dealID); err != nil {
			return lookupError(err, "Deal not found", "Failed to fetch deal")
		}
		if err := s.checkParent(ctx, schedule); err != nil {
			return err
		}

		existing, err := s.scheduleRepo.FindByDeal(ctx, dealID)
		if err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to fetch schedules", err.Error())
		}
		schedule.Position = len(existing)
		if schedule.Status == domain.ScheduleCompleted {
			domain.ApplyStatus(schedule, domain.ScheduleCompleted, nil, s.now())
		}

		if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to create schedule", err.Error())
		}
		return s.activity.Record(ctx, ActivityEntry{
			DealID:      dealID,
			Type:        domain.ActivityEdited,
			Description: fmt.Sprintf("Schedule added: %s", schedule.Title),
			NewValue:    string(schedule.Status),
			Metadata: map[string]interface{}{
				"scheduleId":    schedule.ID,
				"scheduledDate": time.Time(schedule.ScheduledDate).Format(dto.DateLayout),
				"newStatus":     schedule.Status,
			},
			UserID: uuidPtr(actorID),
		})
	})
	if err != nil {
		return nil, writeError(err, "Failed to create schedule")
	}

	s.logger.Info("Schedule created",
		zap.String("schedule_id", schedule.ID.String()),
		zap.String("deal_id", dealID.String()))

	resp := toScheduleResponse(schedule)
	return &resp, nil
}

func (s *scheduleServiceImpl) GetSchedule(ctx context.Context, scheduleID uuid.UUID) (*dto.ScheduleResponse, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, lookupError(err, "Schedule not found", "Failed to fetch schedule")
	}
	resp := toScheduleResponse(schedule)
	return &resp, nil
}

func (s *scheduleServiceImpl) ListDealSchedules(ctx context.Context, dealID uuid.UUID) ([]dto.ScheduleResponse, error) {
	if _, err := s.dealRepo.FindByID(ctx, dealID); err != nil {
		return nil, lookupError(err, "Deal not found", "Failed to fetch deal")
	}
	schedules, err := s.scheduleRepo.FindByDeal(ctx, dealID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch schedules", err.Error())
	}
	return toScheduleResponses(schedules), nil
}

// ListSchedules returns the schedules of every deal within the window
func (s *scheduleServiceImpl) ListSchedules(ctx context.Context, filter dto.ScheduleRangeFilter) ([]dto.ScheduleResponse, error) {
	if filter.From.IsZero() || filter.To.IsZero() {
		return nil, validationError("Both from and to dates are required", "from")
	}
	if filter.To.Before(filter.From) {
		return nil, validationError("to must not be before from", "to")
	}
	if filter.To.Sub(filter.From) > maxScheduleRange {
		return nil, validationError("Date range must not exceed one year", "to")
	}
	if filter.Status != "" {
		filter.Status = strings.ToUpper(filter.Status)
		if !domain.ScheduleStatus(filter.Status).Valid() {
			return nil, validationError(fmt.Sprintf("invalid schedule status %q", filter.Status), "status")
		}
	}

	schedules, err := s.scheduleRepo.FindInRange(ctx, filter)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch schedules", err.Error())
	}
	return toScheduleResponses(schedules), nil
}

// UpdateSchedule replaces the editable fields of a schedule
func (s *scheduleServiceImpl) UpdateSchedule(ctx context.Context, scheduleID uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var schedule *domain.DealSchedule
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.scheduleRepo.FindByID(ctx, scheduleID)
		if err != nil {
			return lookupError(err, "Schedule not found", "Failed to fetch schedule")
		}
		if err := checkVersion(req.Version, current.Version); err != nil {
			return err
		}

		next := *current
		if err := s.applyRequest(&next, req); err != nil {
			return err
		}
		if err := s.checkParent(ctx, &next); err != nil {
			return err
		}
		// status set through the form goes through the workflow so the
		// completion timestamp is stamped exactly once
		target := next.Status
		next.Status = current.Status
		from, _ := domain.ApplyStatus(&next, target, nil, s.now())

		if err := s.scheduleRepo.Update(ctx, &next, current.Version); err != nil {
			return err
		}
		schedule = &next

		return s.activity.Record(ctx, ActivityEntry{
			DealID:      next.DealID,
			Type:        domain.ActivityEdited,
			Description: fmt.Sprintf("Schedule updated: %s", next.Title),
			OldValue:    string(from),
			NewValue:    string(next.Status),
			Metadata: map[string]interface{}{
				"scheduleId": next.ID,
				"oldStatus":  from,
				"newStatus":  next.Status,
				"changes":    scheduleChanges(current, &next),
			},
			UserID: uuidPtr(actorID),
		})
	})
	if err != nil {
		return nil, writeError(err, "Failed to update schedule")
	}

	resp := toScheduleResponse(schedule)
	return &resp, nil
}

// UpdateStatus moves a schedule to any status of the workflow
func (s *scheduleServiceImpl) UpdateStatus(ctx context.Context, scheduleID uuid.UUID, req *dto.UpdateScheduleStatusRequest) (*dto.ScheduleResponse, error) {
	status := domain.ScheduleStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return nil, validationError(fmt.Sprintf("invalid schedule status %q", req.Status), "status")
	}
	return s.changeStatus(ctx, scheduleID, status, req.CompletionNotes, req.Version)
}

// CompleteSchedule is UpdateStatus to COMPLETED with optional notes
func (s *scheduleServiceImpl) CompleteSchedule(ctx context.Context, scheduleID uuid.UUID, req *dto.CompleteScheduleRequest) (*dto.ScheduleResponse, error) {
	var notes *string
	if req != nil {
		notes = req.CompletionNotes
	}
	return s.changeStatus(ctx, scheduleID, domain.ScheduleCompleted, notes, nil)
}

func (s *scheduleServiceImpl) DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		schedule, err := s.scheduleRepo.FindByID(ctx, scheduleID)
		if err != nil {
			return lookupError(err, "Schedule not found", "Failed to fetch schedule")
		}
		if err := s.scheduleRepo.Delete(ctx, scheduleID); err != nil {
			return lookupError(err, "Schedule not found", "Failed to delete schedule")
		}
		return s.activity.Record(ctx, ActivityEntry{
			DealID:      schedule.DealID,
			Type:        domain.ActivityEdited,
			Description: fmt.Sprintf("Schedule removed: %s", schedule.Title),
			OldValue:    string(schedule.Status),
			Metadata: map[string]interface{}{
				"scheduleId": schedule.ID,
				"oldStatus":  schedule.Status,
			},
			UserID: uuidPtr(actorID),
		})
	})
	if err != nil {
		return writeError(err, "Failed to delete schedule")
	}

	s.logger.Info("Schedule deleted", zap.String("schedule_id", scheduleID.String()))
	return nil
}

func (s *scheduleServiceImpl) changeStatus(ctx context.Context, scheduleID uuid.UUID, status domain.ScheduleStatus, notes *string, version *int) (*dto.ScheduleResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var schedule *domain.DealSchedule
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.scheduleRepo.FindByID(ctx, scheduleID)
		if err != nil {
			return lookupError(err, "Schedule not found", "Failed to fetch schedule")
		}
		if err := checkVersion(version, current.Version); err != nil {
			return err
		}

		expected := current.Version
		from, completedNow := domain.ApplyStatus(current, status, notes, s.now())
		if err := s.scheduleRepo.Update(ctx, current, expected); err != nil {
			return err
		}
		schedule = current

		description := fmt.Sprintf("Schedule status changed: %s (%s to %s)", current.Title, from.Label(), status.Label())
		if status == domain.ScheduleCompleted {
			description = fmt.Sprintf("Schedule completed: %s", current.Title)
		}
		metadata := map[string]interface{}{
			"scheduleId": current.ID,
			"oldStatus":  from,
			"newStatus":  status,
		}
		if completedNow {
			metadata["completedAt"] = current.CompletedAt
		}
		return s.activity.Record(ctx, ActivityEntry{
			DealID:      current.DealID,
			Type:        domain.ActivityEdited,
			Description: description,
			OldValue:    string(from),
			NewValue:    string(status),
			Metadata:    metadata,
			UserID:      uuidPtr(actorID),
		})
	})
	if err != nil {
		return nil, writeError(err, "Failed to update schedule status")
	}

	s.logger.Info("Schedule status changed",
		zap.String("schedule_id", scheduleID.String()),
		zap.String("status", string(status)))

	resp := toScheduleResponse(schedule)
	return &resp, nil
}

// applyRequest copies the request onto schedule. An empty status or parent
// keeps the current one.
func (s *scheduleServiceImpl) applyRequest(schedule *domain.DealSchedule, req *dto.ScheduleRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return validationError("Title is required", "title")
	}

	eventType := domain.EventSiteVisit
	if req.EventType != "" {
		eventType = domain.EventType(strings.ToUpper(req.EventType))
	}
	if !eventType.Valid() {
		return validationError(fmt.Sprintf("invalid event type %q", req.EventType), "eventType")
	}

	if req.Status != "" {
		status := domain.ScheduleStatus(strings.ToUpper(req.Status))
		if !status.Valid() {
			return validationError(fmt.Sprintf("invalid schedule status %q", req.Status), "status")
		}
		schedule.Status = status
	}

	date, err := parseDate(&req.ScheduledDate, "scheduledDate")
	if err != nil {
		return err
	}
	if date == nil {
		return validationError("Scheduled date is required", "scheduledDate")
	}
	clock, err := parseClock(req.ScheduledTime)
	if err != nil {
		return err
	}
	if err := checkNonNegative(req.DurationHours, "durationHours"); err != nil {
		return err
	}

	pattern := domain.RecurrenceNone
	if req.RecurrencePattern != "" {
		pattern = domain.Recurrence(strings.ToUpper(req.RecurrencePattern))
	}
	if !pattern.Valid() {
		return validationError(fmt.Sprintf("invalid recurrence pattern %q", req.RecurrencePattern), "recurrencePattern")
	}
	endDate, err := parseDate(req.RecurrenceEndDate, "recurrenceEndDate")
	if err != nil {
		return err
	}
	if pattern == domain.RecurrenceNone {
		endDate = nil
	}
	if endDate != nil && time.Time(*endDate).Before(time.Time(*date)) {
		return validationError("Recurrence end date must not be before the scheduled date", "recurrenceEndDate")
	}

	schedule.Title = title
	schedule.Description = req.Description
	schedule.EventType = eventType
	schedule.ScheduledDate = *date
	schedule.ScheduledTime = clock
	schedule.DurationHours = req.DurationHours
	schedule.AssignedToID = req.AssignedToID
	schedule.LocationNotes = req.LocationNotes
	schedule.AccessInstructions = req.AccessInstructions
	schedule.EquipmentNeeded = req.EquipmentNeeded
	schedule.RecurrencePattern = pattern
	schedule.IsRecurring = pattern != domain.RecurrenceNone
	schedule.RecurrenceEndDate = endDate
	// omitting the parent keeps the existing link; recurrence expansion
	// relies on it to stay idempotent
	if req.ParentScheduleID != nil {
		schedule.ParentScheduleID = req.ParentScheduleID
	}
	return nil
}

// checkParent validates the parent link of schedule against the stored chain
func (s *scheduleServiceImpl) checkParent(ctx context.Context, schedule *domain.DealSchedule) error {
	if schedule.ParentScheduleID == nil {
		return nil
	}
	lookup := func(id uuid.UUID) (*uuid.UUID, uuid.UUID, error) {
		return s.scheduleRepo.ParentOf(ctx, id)
	}

	err := domain.CheckParentChain(schedule.ID, *schedule.ParentScheduleID, schedule.DealID, lookup)
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return validationError("Parent schedule not found", "parentScheduleId")
	case errors.Is(err, domain.ErrScheduleCycle),
		errors.Is(err, domain.ErrScheduleChainTooDeep),
		errors.Is(err, domain.ErrScheduleParentForeign):
		return validationError(err.Error(), "parentScheduleId")
	}
	return response.NewAppError(response.ErrCodeInternal, "Failed to check parent schedule", err.Error())
}

// parseClock parses an optional HH:MM value
func parseClock(value *string) (*datatypes.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(clockLayout, *value)
	if err != nil {
		return nil, validationError("Invalid time, expected HH:MM", "scheduledTime")
	}
	clock := datatypes.NewTime(t.Hour(), t.Minute(), 0, 0)
	return &clock, nil
}

func formatClock(t datatypes.Time) string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func scheduleChanges(prev, next *domain.DealSchedule) []string {
	var changed []string
	if prev.Title != next.Title {
		changed = append(changed, "title")
	}
	if prev.EventType != next.EventType {
		changed = append(changed, "eventType")
	}
	if prev.Status != next.Status {
		changed = append(changed, "status")
	}
	if !time.Time(prev.ScheduledDate).Equal(time.Time(next.ScheduledDate)) {
		changed = append(changed, "scheduledDate")
	}
	if !sameClock(prev.ScheduledTime, next.ScheduledTime) {
		changed = append(changed, "scheduledTime")
	}
	if uuidPtrString(prev.AssignedToID) != uuidPtrString(next.AssignedToID) {
		changed = append(changed, "assignedToId")
	}
	if prev.RecurrencePattern != next.RecurrencePattern {
		changed = append(changed, "recurrencePattern")
	}
	return changed
}

func sameClock(a, b *datatypes.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
