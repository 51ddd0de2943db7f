package job

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/metrics"
	"crm-pipeline-api/internal/repository"
)

// RecurrenceJob expands recurring schedules into dated child instances up to
// a rolling horizon. Running it twice for the same day creates nothing new.
type RecurrenceJob struct {
	scheduleRepo repository.ScheduleRepository
	metrics      *metrics.Metrics
	logger       *zap.Logger
	horizon      time.Duration
	now          func() time.Time
}

// NewRecurrenceJob creates a new RecurrenceJob instance
func NewRecurrenceJob(
	scheduleRepo repository.ScheduleRepository,
	m *metrics.Metrics,
	horizonDays int,
	logger *zap.Logger,
) *RecurrenceJob {
	if horizonDays <= 0 {
		horizonDays = 60
	}
	return &RecurrenceJob{
		scheduleRepo: scheduleRepo,
		metrics:      m,
		logger:       logger,
		horizon:      time.Duration(horizonDays) * 24 * time.Hour,
		now:          time.Now,
	}
}

// Run executes the job. The signature matches cron.FuncJob.
func (j *RecurrenceJob) Run() {
	created, err := j.Expand(context.Background())
	if err != nil {
		j.logger.Error("Recurrence expansion failed", zap.Error(err))
		return
	}
	if j.metrics != nil {
		j.metrics.AddScheduleInstances(created)
	}
}

// Expand creates the missing instances of every active recurring schedule and
// returns how many were created. A failing parent is logged and skipped.
func (j *RecurrenceJob) Expand(ctx context.Context) (int, error) {
	today := truncateDay(j.now())
	until := today.Add(j.horizon)

	j.logger.Info("Starting recurrence expansion",
		zap.Time("until", until),
	)

	parents, err := j.scheduleRepo.FindRecurringParents(ctx, today)
	if err != nil {
		return 0, err
	}
	if len(parents) == 0 {
		j.logger.Info("No recurring schedules found")
		return 0, nil
	}

	created, failed := 0, 0
	for _, parent := range parents {
		n, err := j.expandParent(ctx, parent, today, until)
		created += n
		if err != nil {
			failed++
			j.logger.Error("Failed to expand recurring schedule",
				zap.String("schedule_id", parent.ID.String()),
				zap.Error(err),
			)
		}
	}

	j.logger.Info("Recurrence expansion completed",
		zap.Int("parents", len(parents)),
		zap.Int("created", created),
		zap.Int("failed", failed),
	)
	return created, nil
}

// expandParent never backfills dates before from
func (j *RecurrenceJob) expandParent(ctx context.Context, parent *domain.DealSchedule, from, until time.Time) (int, error) {
	limit := until
	if parent.RecurrenceEndDate != nil {
		if end := time.Time(*parent.RecurrenceEndDate); end.Before(limit) {
			limit = end
		}
	}

	created := 0
	for _, date := range domain.Occurrences(time.Time(parent.ScheduledDate), parent.RecurrencePattern, limit) {
		if date.Before(from) {
			continue
		}
		exists, err := j.scheduleRepo.ChildExists(ctx, parent.ID, date)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		child := instanceOf(parent, date)
		if err := j.scheduleRepo.Create(ctx, child); err != nil {
			return created, err
		}
		created++
		j.logger.Debug("Created schedule instance",
			zap.String("parent_id", parent.ID.String()),
			zap.String("schedule_id", child.ID.String()),
			zap.Time("date", date),
		)
	}
	return created, nil
}

// instanceOf copies the parent's details onto a non-recurring schedule for date
func instanceOf(parent *domain.DealSchedule, date time.Time) *domain.DealSchedule {
	parentID := parent.ID
	return &domain.DealSchedule{
		DealID:             parent.DealID,
		Title:              parent.Title,
		Description:        parent.Description,
		EventType:          parent.EventType,
		Status:             domain.ScheduleScheduled,
		ScheduledDate:      datatypes.Date(date),
		ScheduledTime:      parent.ScheduledTime,
		DurationHours:      parent.DurationHours,
		AssignedToID:       parent.AssignedToID,
		LocationNotes:      parent.LocationNotes,
		AccessInstructions: parent.AccessInstructions,
		EquipmentNeeded:    parent.EquipmentNeeded,
		RecurrencePattern:  domain.RecurrenceNone,
		ParentScheduleID:   &parentID,
		CreatedByID:        parent.CreatedByID,
		Version:            1,
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
