package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityType is the kind of mutation an activity entry records
type ActivityType string

const (
	ActivityCreated      ActivityType = "CREATED"
	ActivityStageChanged ActivityType = "STAGE_CHANGED"
	ActivityEdited       ActivityType = "EDITED"
	ActivityFileAdded    ActivityType = "FILE_ADDED"
	ActivityFileRemoved  ActivityType = "FILE_REMOVED"
	ActivityComment      ActivityType = "COMMENT"
	ActivityAssigned     ActivityType = "ASSIGNED"
)

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityCreated, ActivityStageChanged, ActivityEdited, ActivityFileAdded,
		ActivityFileRemoved, ActivityComment, ActivityAssigned:
		return true
	}
	return false
}

func (t ActivityType) Label() string {
	switch t {
	case ActivityCreated:
		return "Deal Created"
	case ActivityStageChanged:
		return "Stage Changed"
	case ActivityEdited:
		return "Deal Edited"
	case ActivityFileAdded:
		return "File Added"
	case ActivityFileRemoved:
		return "File Removed"
	case ActivityComment:
		return "Comment Added"
	case ActivityAssigned:
		return "Assignment Changed"
	}
	return string(t)
}

// DealActivity is an append-only audit entry. It has no UpdatedAt: entries
// are never modified.
type DealActivity struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DealID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_deal_activities_deal_created,priority:1" json:"dealId"`
	ActivityType ActivityType   `gorm:"type:varchar(20);not null;index:idx_deal_activities_type" json:"activityType"`
	Description  string         `gorm:"type:text;not null" json:"description"`
	OldValue     string         `gorm:"type:varchar(255)" json:"oldValue,omitempty"`
	NewValue     string         `gorm:"type:varchar(255)" json:"newValue,omitempty"`
	Metadata     datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	UserID       *uuid.UUID     `gorm:"type:uuid" json:"userId,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_deal_activities_deal_created,priority:2" json:"createdAt"`
}

// BeforeCreate assigns an ID when the caller did not
func (a *DealActivity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for DealActivity
func (DealActivity) TableName() string {
	return "deal_activities"
}
