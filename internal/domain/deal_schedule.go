package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ScheduleStatus is the lifecycle state of a scheduled event
type ScheduleStatus string

const (
	ScheduleNewRequest ScheduleStatus = "NEW_REQUEST"
	ScheduleSOAssigned ScheduleStatus = "SO_ASSIGNED"
	ScheduleScheduled  ScheduleStatus = "SCHEDULED"
	ScheduleInProgress ScheduleStatus = "IN_PROGRESS"
	ScheduleCompleted  ScheduleStatus = "COMPLETED"
	ScheduleCancelled  ScheduleStatus = "CANCELLED"
)

func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleNewRequest, ScheduleSOAssigned, ScheduleScheduled,
		ScheduleInProgress, ScheduleCompleted, ScheduleCancelled:
		return true
	}
	return false
}

func (s ScheduleStatus) Label() string {
	switch s {
	case ScheduleNewRequest:
		return "New Request"
	case ScheduleSOAssigned:
		return "Site Officer Assigned"
	case ScheduleScheduled:
		return "Scheduled"
	case ScheduleInProgress:
		return "In Progress"
	case ScheduleCompleted:
		return "Completed"
	case ScheduleCancelled:
		return "Cancelled"
	}
	return string(s)
}

// EventType classifies a scheduled event
type EventType string

const (
	EventSiteVisit      EventType = "SITE_VISIT"
	EventInspection     EventType = "INSPECTION"
	EventMeeting        EventType = "MEETING"
	EventEstimateReview EventType = "ESTIMATE_REVIEW"
	EventInstallation   EventType = "INSTALLATION"
	EventFollowUp       EventType = "FOLLOW_UP"
	EventOther          EventType = "OTHER"
)

func (t EventType) Valid() bool {
	switch t {
	case EventSiteVisit, EventInspection, EventMeeting, EventEstimateReview,
		EventInstallation, EventFollowUp, EventOther:
		return true
	}
	return false
}

// Recurrence is how often a recurring schedule repeats
type Recurrence string

const (
	RecurrenceNone     Recurrence = "NONE"
	RecurrenceDaily    Recurrence = "DAILY"
	RecurrenceWeekly   Recurrence = "WEEKLY"
	RecurrenceBiweekly Recurrence = "BIWEEKLY"
	RecurrenceMonthly  Recurrence = "MONTHLY"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Nth returns the n-th occurrence counted from start. Monthly occurrences
// keep start's day of month, falling back to the last day of shorter months.
func (r Recurrence) Nth(start time.Time, n int) time.Time {
	switch r {
	case RecurrenceDaily:
		return start.AddDate(0, 0, n)
	case RecurrenceWeekly:
		return start.AddDate(0, 0, 7*n)
	case RecurrenceBiweekly:
		return start.AddDate(0, 0, 14*n)
	case RecurrenceMonthly:
		return addMonthsClamped(start, n)
	}
	return start
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	// day 1 never overflows, so the month arithmetic is exact
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// MaxScheduleChainDepth bounds how far parent links are followed
const MaxScheduleChainDepth = 64

var (
	ErrScheduleCycle         = errors.New("schedule parent chain contains a cycle")
	ErrScheduleChainTooDeep  = errors.New("schedule parent chain is too deep")
	ErrScheduleParentForeign = errors.New("parent schedule belongs to another deal")
)

// DealSchedule is a dated event (site visit, inspection, ...) tied to a deal
type DealSchedule struct {
	BaseModel
	DealID             uuid.UUID           `gorm:"type:uuid;not null;index:idx_deal_schedules_deal_id" json:"dealId"`
	Title              string              `gorm:"type:varchar(255);not null" json:"title"`
	Description        string              `gorm:"type:text" json:"description,omitempty"`
	EventType          EventType           `gorm:"type:varchar(30);not null;default:'SITE_VISIT'" json:"eventType"`
	Status             ScheduleStatus      `gorm:"type:varchar(20);not null;default:'NEW_REQUEST';index:idx_deal_schedules_status" json:"status"`
	ScheduledDate      datatypes.Date      `gorm:"type:date;not null;index:idx_deal_schedules_scheduled_date" json:"scheduledDate"`
	ScheduledTime      *datatypes.Time     `gorm:"type:time" json:"scheduledTime,omitempty"`
	DurationHours      decimal.NullDecimal `gorm:"type:numeric(4,1)" json:"durationHours"`
	AssignedToID       *uuid.UUID          `gorm:"type:uuid;index:idx_deal_schedules_assigned_to" json:"assignedToId,omitempty"`
	LocationNotes      string              `gorm:"type:text" json:"locationNotes,omitempty"`
	AccessInstructions string              `gorm:"type:text" json:"accessInstructions,omitempty"`
	EquipmentNeeded    string              `gorm:"type:text" json:"equipmentNeeded,omitempty"`
	IsRecurring        bool                `gorm:"not null;default:false" json:"isRecurring"`
	RecurrencePattern  Recurrence          `gorm:"type:varchar(20);not null;default:'NONE'" json:"recurrencePattern"`
	RecurrenceEndDate  *datatypes.Date     `gorm:"type:date" json:"recurrenceEndDate,omitempty"`
	ParentScheduleID   *uuid.UUID          `gorm:"type:uuid;index:idx_deal_schedules_parent" json:"parentScheduleId,omitempty"`
	CompletedAt        *time.Time          `gorm:"type:timestamp" json:"completedAt,omitempty"`
	CompletionNotes    string              `gorm:"type:text" json:"completionNotes,omitempty"`
	Position           int                 `gorm:"not null;default:0" json:"position"`
	CreatedByID        *uuid.UUID          `gorm:"type:uuid" json:"createdById,omitempty"`
	Version            int                 `gorm:"not null;default:1" json:"version"`
}

// TableName specifies the table name for DealSchedule
func (DealSchedule) TableName() string {
	return "deal_schedules"
}

// ApplyStatus sets the status and, the first time it becomes completed,
// the completion timestamp and notes. Any member of the enumeration is
// accepted from any state.
func ApplyStatus(s *DealSchedule, to ScheduleStatus, notes *string, now time.Time) (from ScheduleStatus, completedNow bool) {
	from = s.Status
	s.Status = to
	if to == ScheduleCompleted && s.CompletedAt == nil {
		t := now
		s.CompletedAt = &t
		completedNow = true
	}
	if to == ScheduleCompleted && notes != nil && *notes != "" {
		s.CompletionNotes = *notes
	}
	return from, completedNow
}

// ParentLookup resolves a schedule to its parent reference
type ParentLookup func(id uuid.UUID) (parent *uuid.UUID, dealID uuid.UUID, err error)

// CheckParentChain verifies that making parentID the parent of selfID keeps
// the chain acyclic, bounded and within dealID.
func CheckParentChain(selfID, parentID, dealID uuid.UUID, lookup ParentLookup) error {
	visited := map[uuid.UUID]bool{}
	if selfID != uuid.Nil {
		visited[selfID] = true
	}
	current := parentID
	for depth := 0; ; depth++ {
		if depth >= MaxScheduleChainDepth {
			return ErrScheduleChainTooDeep
		}
		if visited[current] {
			return ErrScheduleCycle
		}
		visited[current] = true

		next, owner, err := lookup(current)
		if err != nil {
			return err
		}
		if owner != dealID {
			return ErrScheduleParentForeign
		}
		if next == nil {
			return nil
		}
		current = *next
	}
}

// Occurrences lists the dates after start on which a recurring schedule
// repeats, up to and including until.
func Occurrences(start time.Time, pattern Recurrence, until time.Time) []time.Time {
	if pattern == RecurrenceNone || !pattern.Valid() {
		return nil
	}
	var out []time.Time
	for n := 1; ; n++ {
		d := pattern.Nth(start, n)
		if d.After(until) {
			return out
		}
		out = append(out, d)
	}
}
