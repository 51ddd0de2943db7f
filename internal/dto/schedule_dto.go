package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScheduleRequest creates or replaces a schedule
// @Description scheduledDate is YYYY-MM-DD, scheduledTime is HH:MM.
// @Description recurrencePattern other than NONE makes the schedule recurring until recurrenceEndDate.
type ScheduleRequest struct {
	Title              string              `json:"title" binding:"required,min=1,max=255" example:"Initial site visit"`
	Description        string              `json:"description"`
	EventType          string              `json:"eventType" binding:"omitempty,oneof=SITE_VISIT INSPECTION MEETING ESTIMATE_REVIEW INSTALLATION FOLLOW_UP OTHER" example:"SITE_VISIT"`
	Status             string              `json:"status" binding:"omitempty,oneof=NEW_REQUEST SO_ASSIGNED SCHEDULED IN_PROGRESS COMPLETED CANCELLED"`
	ScheduledDate      string              `json:"scheduledDate" binding:"required,datetime=2006-01-02" example:"2026-05-04"`
	ScheduledTime      *string             `json:"scheduledTime,omitempty" binding:"omitempty,datetime=15:04" example:"09:30"`
	DurationHours      decimal.NullDecimal `json:"durationHours" swaggertype:"string" example:"1.5"`
	AssignedToID       *uuid.UUID          `json:"assignedToId,omitempty"`
	LocationNotes      string              `json:"locationNotes"`
	AccessInstructions string              `json:"accessInstructions"`
	EquipmentNeeded    string              `json:"equipmentNeeded"`
	RecurrencePattern  string              `json:"recurrencePattern" binding:"omitempty,oneof=NONE DAILY WEEKLY BIWEEKLY MONTHLY"`
	RecurrenceEndDate  *string             `json:"recurrenceEndDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	ParentScheduleID   *uuid.UUID          `json:"parentScheduleId,omitempty"`
	Version            *int                `json:"version,omitempty"`
}

// UpdateScheduleStatusRequest changes only the status
type UpdateScheduleStatusRequest struct {
	Status          string  `json:"status" binding:"required" example:"SCHEDULED"`
	CompletionNotes *string `json:"completionNotes,omitempty"`
	Version         *int    `json:"version,omitempty"`
}

// CompleteScheduleRequest marks a schedule completed
type CompleteScheduleRequest struct {
	CompletionNotes *string `json:"completionNotes,omitempty"`
}

// ScheduleResponse represents a schedule
type ScheduleResponse struct {
	ID                 uuid.UUID        `json:"scheduleId"`
	DealID             uuid.UUID        `json:"dealId"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	EventType          string           `json:"eventType"`
	Status             string           `json:"status"`
	StatusLabel        string           `json:"statusLabel"`
	ScheduledDate      string           `json:"scheduledDate"`
	ScheduledTime      *string          `json:"scheduledTime,omitempty"`
	DurationHours      *decimal.Decimal `json:"durationHours,omitempty" swaggertype:"string"`
	AssignedToID       *uuid.UUID       `json:"assignedToId,omitempty"`
	LocationNotes      string           `json:"locationNotes,omitempty"`
	AccessInstructions string           `json:"accessInstructions,omitempty"`
	EquipmentNeeded    string           `json:"equipmentNeeded,omitempty"`
	IsRecurring        bool             `json:"isRecurring"`
	RecurrencePattern  string           `json:"recurrencePattern"`
	RecurrenceEndDate  *string          `json:"recurrenceEndDate,omitempty"`
	ParentScheduleID   *uuid.UUID       `json:"parentScheduleId,omitempty"`
	CompletedAt        *time.Time       `json:"completedAt,omitempty"`
	CompletionNotes    string           `json:"completionNotes,omitempty"`
	Position           int              `json:"position"`
	Version            int              `json:"version"`
	CreatedByID        *uuid.UUID       `json:"createdById,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// ScheduleRangeFilter selects schedules across deals by date
type ScheduleRangeFilter struct {
	From         time.Time
	To           time.Time
	AssignedToID *uuid.UUID
	Status       string
}
