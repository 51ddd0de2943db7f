package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DefaultProbability is used when no stage-specific suggestion applies
const DefaultProbability = 50

// Deal is a sales opportunity moving through the pipeline
type Deal struct {
	BaseModel
	Title            string              `gorm:"type:varchar(255);not null" json:"title"`
	Description      string              `gorm:"type:text" json:"description"`
	ClientID         uuid.UUID           `gorm:"type:uuid;not null;index:idx_deals_client_stage,priority:1" json:"clientId"`
	Client           *Client             `gorm:"foreignKey:ClientID;constraint:OnDelete:RESTRICT" json:"client,omitempty"`
	Stage            Stage               `gorm:"type:varchar(30);not null;default:'NEW_REQUEST';index:idx_deals_stage_position,priority:1;index:idx_deals_owner_stage,priority:2;index:idx_deals_client_stage,priority:2" json:"stage"`
	StageChangedAt   time.Time           `gorm:"type:timestamp;not null;index:idx_deals_stage_changed_at" json:"stageChangedAt"`
	ClosedLostReason ClosedLostReason    `gorm:"type:varchar(20)" json:"closedLostReason,omitempty"`
	DeclinedReason   DeclinedReason      `gorm:"type:varchar(20)" json:"declinedReason,omitempty"`
	CloseNotes       string              `gorm:"type:text" json:"closeNotes,omitempty"`
	EstimatedValue   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"estimatedValue"`
	ActualValue      decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"actualValue"`
	Probability      int                 `gorm:"not null;default:50" json:"probability"`
	// date-only columns
	ExpectedCloseDate *datatypes.Date `gorm:"type:date;index:idx_deals_expected_close_date" json:"expectedCloseDate,omitempty"`
	ActualCloseDate   *datatypes.Date `gorm:"type:date" json:"actualCloseDate,omitempty"`
	OwnerID           uuid.UUID       `gorm:"type:uuid;not null;index:idx_deals_owner_stage,priority:1" json:"ownerId"`
	EstimatorID       *uuid.UUID      `gorm:"type:uuid" json:"estimatorId,omitempty"`
	SiteOfficerID     *uuid.UUID      `gorm:"type:uuid" json:"siteOfficerId,omitempty"`
	ProjectManagerID  *uuid.UUID      `gorm:"type:uuid" json:"projectManagerId,omitempty"`
	Position          int             `gorm:"not null;default:0;index:idx_deals_stage_position,priority:2" json:"position"`
	CreatedByID       *uuid.UUID      `gorm:"type:uuid" json:"createdById,omitempty"`
	Version           int             `gorm:"not null;default:1" json:"version"`

	Files      []DealFile     `gorm:"foreignKey:DealID;constraint:OnDelete:CASCADE" json:"-"`
	Activities []DealActivity `gorm:"foreignKey:DealID;constraint:OnDelete:CASCADE" json:"-"`
	Schedules  []DealSchedule `gorm:"foreignKey:DealID;constraint:OnDelete:CASCADE" json:"-"`
	Comments   []DealComment  `gorm:"foreignKey:DealID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Deal
func (Deal) TableName() string {
	return "deals"
}

// EstimatedOrZero treats a missing estimate as zero
func (d *Deal) EstimatedOrZero() decimal.Decimal {
	if d.EstimatedValue.Valid {
		return d.EstimatedValue.Decimal
	}
	return decimal.Zero
}

// WeightedValue is the estimate scaled by win probability
func (d *Deal) WeightedValue() decimal.Decimal {
	return d.EstimatedOrZero().Mul(decimal.NewFromInt(int64(d.Probability))).Div(decimal.NewFromInt(100))
}

func (d *Deal) IsActive() bool { return d.Stage.IsActive() }
func (d *Deal) IsClosed() bool { return d.Stage.IsClosed() }
func (d *Deal) IsWon() bool    { return d.Stage == StageClosedWon }

// DaysInStage counts whole days since the last stage change
func (d *Deal) DaysInStage(now time.Time) int {
	return int(now.Sub(d.StageChangedAt).Hours() / 24)
}

// AgeInDays counts whole days since creation
func (d *Deal) AgeInDays(now time.Time) int {
	return int(now.Sub(d.CreatedAt).Hours() / 24)
}

// AssignmentOf returns the user references that define who works the deal
func (d *Deal) AssignmentOf() Assignment {
	return Assignment{
		OwnerID:          d.OwnerID,
		EstimatorID:      d.EstimatorID,
		SiteOfficerID:    d.SiteOfficerID,
		ProjectManagerID: d.ProjectManagerID,
	}
}

// Assignment groups the user references of a deal
type Assignment struct {
	OwnerID          uuid.UUID
	EstimatorID      *uuid.UUID
	SiteOfficerID    *uuid.UUID
	ProjectManagerID *uuid.UUID
}

// Equal compares two assignments field by field
func (a Assignment) Equal(b Assignment) bool {
	return a.OwnerID == b.OwnerID &&
		sameUser(a.EstimatorID, b.EstimatorID) &&
		sameUser(a.SiteOfficerID, b.SiteOfficerID) &&
		sameUser(a.ProjectManagerID, b.ProjectManagerID)
}

// NewlyAssigned lists users that appear in a but not in prev
func (a Assignment) NewlyAssigned(prev Assignment) []uuid.UUID {
	before := map[uuid.UUID]bool{prev.OwnerID: true}
	for _, id := range []*uuid.UUID{prev.EstimatorID, prev.SiteOfficerID, prev.ProjectManagerID} {
		if id != nil {
			before[*id] = true
		}
	}

	var out []uuid.UUID
	seen := map[uuid.UUID]bool{}
	candidates := []*uuid.UUID{&a.OwnerID, a.EstimatorID, a.SiteOfficerID, a.ProjectManagerID}
	for _, id := range candidates {
		if id == nil || *id == uuid.Nil || before[*id] || seen[*id] {
			continue
		}
		seen[*id] = true
		out = append(out, *id)
	}
	return out
}

func sameUser(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DateOf truncates t to a date-only value
func DateOf(t time.Time) *datatypes.Date {
	d := datatypes.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return &d
}
