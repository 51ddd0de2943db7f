package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
)

// ScheduleRepository defines the interface for deal schedule data access
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *domain.DealSchedule) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DealSchedule, error)
	FindByDeal(ctx context.Context, dealID uuid.UUID) ([]*domain.DealSchedule, error)
	FindInRange(ctx context.Context, filter dto.ScheduleRangeFilter) ([]*domain.DealSchedule, error)
	Update(ctx context.Context, schedule *domain.DealSchedule, expectedVersion int) error
	Delete(ctx context.Context, id uuid.UUID) error
	ParentOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, uuid.UUID, error)
	FindRecurringParents(ctx context.Context, activeOn time.Time) ([]*domain.DealSchedule, error)
	ChildExists(ctx context.Context, parentID uuid.UUID, date time.Time) (bool, error)
}

type scheduleRepositoryImpl struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new instance of ScheduleRepository
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepositoryImpl{db: db}
}

func (r *scheduleRepositoryImpl) Create(ctx context.Context, schedule *domain.DealSchedule) error {
	return dbFrom(ctx, r.db).Create(schedule).Error
}

func (r *scheduleRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.DealSchedule, error) {
	var schedule domain.DealSchedule
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindByDeal lists a deal's schedules by date, then time
func (r *scheduleRepositoryImpl) FindByDeal(ctx context.Context, dealID uuid.UUID) ([]*domain.DealSchedule, error) {
	var schedules []*domain.DealSchedule
	if err := dbFrom(ctx, r.db).
		Where("deal_id = ?", dealID).
		Order("scheduled_date ASC").
		Order("scheduled_time ASC").
		Order("position ASC").
		Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// FindInRange lists schedules of all deals with a date in [From, To]
func (r *scheduleRepositoryImpl) FindInRange(ctx context.Context, filter dto.ScheduleRangeFilter) ([]*domain.DealSchedule, error) {
	query := dbFrom(ctx, r.db).
		Where("scheduled_date >= ? AND scheduled_date <= ?", filter.From, filter.To)
	if filter.AssignedToID != nil {
		query = query.Where("assigned_to_id = ?", *filter.AssignedToID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var schedules []*domain.DealSchedule
	if err := query.
		Order("scheduled_date ASC").
		Order("scheduled_time ASC").
		Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// Update writes every column if the stored version still equals
// expectedVersion, and bumps the version
func (r *scheduleRepositoryImpl) Update(ctx context.Context, schedule *domain.DealSchedule, expectedVersion int) error {
	schedule.Version = expectedVersion + 1
	result := dbFrom(ctx, r.db).
		Model(schedule).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(schedule)
	if result.Error != nil {
		schedule.Version = expectedVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		schedule.Version = expectedVersion
		return ErrVersionConflict
	}
	return nil
}

// Delete removes a schedule. Recurrence instances generated from it are kept
// and detached.
func (r *scheduleRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	db := dbFrom(ctx, r.db)
	if err := db.Model(&domain.DealSchedule{}).
		Where("parent_schedule_id = ?", id).
		UpdateColumn("parent_schedule_id", nil).Error; err != nil {
		return err
	}

	result := db.Where("id = ?", id).Delete(&domain.DealSchedule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ParentOf returns the parent reference and deal of a schedule
func (r *scheduleRepositoryImpl) ParentOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, uuid.UUID, error) {
	var schedule domain.DealSchedule
	if err := dbFrom(ctx, r.db).
		Select("id", "deal_id", "parent_schedule_id").
		Where("id = ?", id).
		First(&schedule).Error; err != nil {
		return nil, uuid.Nil, err
	}
	return schedule.ParentScheduleID, schedule.DealID, nil
}

// FindRecurringParents returns recurring schedules that are not themselves
// instances and whose recurrence has not ended before activeOn
func (r *scheduleRepositoryImpl) FindRecurringParents(ctx context.Context, activeOn time.Time) ([]*domain.DealSchedule, error) {
	var schedules []*domain.DealSchedule
	if err := dbFrom(ctx, r.db).
		Where("is_recurring = ? AND recurrence_pattern <> ?", true, domain.RecurrenceNone).
		Where("parent_schedule_id IS NULL").
		Where("status <> ?", domain.ScheduleCancelled).
		Where("recurrence_end_date IS NULL OR recurrence_end_date >= ?", activeOn).
		Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// ChildExists reports whether an instance of parentID already exists on date
func (r *scheduleRepositoryImpl) ChildExists(ctx context.Context, parentID uuid.UUID, date time.Time) (bool, error) {
	var child domain.DealSchedule
	err := dbFrom(ctx, r.db).
		Select("id").
		Where("parent_schedule_id = ? AND scheduled_date = ?", parentID, date).
		First(&child).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
