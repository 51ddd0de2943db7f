package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of date-only fields
const DateLayout = "2006-01-02"

// CreateDealRequest represents the request to create a new deal
// @Description Request body for creating a deal. stage defaults to NEW_REQUEST,
// @Description probability to the stage default and ownerId to the caller.
type CreateDealRequest struct {
	Title             string              `json:"title" binding:"required,min=1,max=255" example:"Warehouse roof replacement"`
	Description       string              `json:"description" example:"Full tear-off, 40k sq ft"`
	ClientID          uuid.UUID           `json:"clientId" binding:"required" example:"539167fb-b599-41ba-9ead-344a6d0b3a2f"`
	Stage             string              `json:"stage,omitempty" example:"NEW_REQUEST"`
	EstimatedValue    decimal.NullDecimal `json:"estimatedValue" swaggertype:"string" example:"125000.00"`
	Probability       *int                `json:"probability,omitempty" binding:"omitempty,min=0,max=100" example:"10"`
	ExpectedCloseDate *string             `json:"expectedCloseDate,omitempty" binding:"omitempty,datetime=2006-01-02" example:"2026-06-30"`
	OwnerID           *uuid.UUID          `json:"ownerId,omitempty"`
	EstimatorID       *uuid.UUID          `json:"estimatorId,omitempty"`
	SiteOfficerID     *uuid.UUID          `json:"siteOfficerId,omitempty"`
	ProjectManagerID  *uuid.UUID          `json:"projectManagerId,omitempty"`
}

// UpdateDealRequest replaces the editable fields of a deal.
// @Description Full replacement of a deal's editable fields. Omitted nullable fields are cleared.
// @Description version is optional; when sent, the update fails with CONFLICT if the deal changed meanwhile.
type UpdateDealRequest struct {
	Title             string              `json:"title" binding:"required,min=1,max=255"`
	Description       string              `json:"description"`
	ClientID          uuid.UUID           `json:"clientId" binding:"required"`
	Stage             string              `json:"stage" binding:"required"`
	ClosedLostReason  string              `json:"closedLostReason,omitempty"`
	DeclinedReason    string              `json:"declinedReason,omitempty"`
	CloseNotes        string              `json:"closeNotes,omitempty"`
	EstimatedValue    decimal.NullDecimal `json:"estimatedValue" swaggertype:"string"`
	ActualValue       decimal.NullDecimal `json:"actualValue" swaggertype:"string"`
	Probability       int                 `json:"probability" binding:"min=0,max=100"`
	ExpectedCloseDate *string             `json:"expectedCloseDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	OwnerID           uuid.UUID           `json:"ownerId" binding:"required"`
	EstimatorID       *uuid.UUID          `json:"estimatorId,omitempty"`
	SiteOfficerID     *uuid.UUID          `json:"siteOfficerId,omitempty"`
	ProjectManagerID  *uuid.UUID          `json:"projectManagerId,omitempty"`
	Version           *int                `json:"version,omitempty" example:"3"`
}

// CloseDealRequest closes a deal as won, lost or declined
// @Description reason is required for CLOSED_LOST and DECLINED_TO_BID.
// @Description actualValue defaults to the estimated value for CLOSED_WON.
type CloseDealRequest struct {
	Stage       string              `json:"stage" binding:"required,oneof=CLOSED_WON CLOSED_LOST DECLINED_TO_BID" example:"CLOSED_LOST"`
	Reason      string              `json:"reason,omitempty" example:"COMPETITOR"`
	ActualValue decimal.NullDecimal `json:"actualValue" swaggertype:"string"`
	CloseNotes  *string             `json:"closeNotes,omitempty"`
	Version     *int                `json:"version,omitempty"`
}

// DealResponse represents a deal
type DealResponse struct {
	ID                uuid.UUID        `json:"dealId"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	ClientID          uuid.UUID        `json:"clientId"`
	ClientName        string           `json:"clientName,omitempty"`
	Stage             string           `json:"stage"`
	StageLabel        string           `json:"stageLabel"`
	StageChangedAt    time.Time        `json:"stageChangedAt"`
	DaysInStage       int              `json:"daysInStage"`
	ClosedLostReason  string           `json:"closedLostReason,omitempty"`
	DeclinedReason    string           `json:"declinedReason,omitempty"`
	CloseNotes        string           `json:"closeNotes,omitempty"`
	EstimatedValue    *decimal.Decimal `json:"estimatedValue" swaggertype:"string"`
	ActualValue       *decimal.Decimal `json:"actualValue" swaggertype:"string"`
	WeightedValue     decimal.Decimal  `json:"weightedValue" swaggertype:"string"`
	Probability       int              `json:"probability"`
	ExpectedCloseDate *string          `json:"expectedCloseDate,omitempty"`
	ActualCloseDate   *string          `json:"actualCloseDate,omitempty"`
	OwnerID           uuid.UUID        `json:"ownerId"`
	EstimatorID       *uuid.UUID       `json:"estimatorId,omitempty"`
	SiteOfficerID     *uuid.UUID       `json:"siteOfficerId,omitempty"`
	ProjectManagerID  *uuid.UUID       `json:"projectManagerId,omitempty"`
	Position          int              `json:"position"`
	IsActive          bool             `json:"isActive"`
	IsWon             bool             `json:"isWon"`
	Version           int              `json:"version"`
	CreatedByID       *uuid.UUID       `json:"createdById,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// DealDetailResponse is a deal with everything shown on its detail page
type DealDetailResponse struct {
	DealResponse
	Files      []DealFileResponse       `json:"files"`
	Activities []ActivityResponse       `json:"activities"`
	Schedules  []ScheduleResponse       `json:"schedules"`
	Comments   []*CommentThreadResponse `json:"comments"`
}

// DealSearchResult is one live-search hit
type DealSearchResult struct {
	ID         uuid.UUID `json:"dealId"`
	Title      string    `json:"title"`
	ClientName string    `json:"clientName"`
	Stage      string    `json:"stage"`
	StageLabel string    `json:"stageLabel"`
}

// Sort keys accepted by the deal list
var dealSortColumns = map[string]string{
	"title":           "deals.title ASC",
	"-title":          "deals.title DESC",
	"created":         "deals.created_at ASC",
	"-created":        "deals.created_at DESC",
	"value":           "deals.estimated_value ASC",
	"-value":          "deals.estimated_value DESC",
	"expected_close":  "deals.expected_close_date ASC",
	"-expected_close": "deals.expected_close_date DESC",
	"stage_changed":   "deals.stage_changed_at ASC",
	"-stage_changed":  "deals.stage_changed_at DESC",
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
	SearchLimit     = 10
	MinSearchLength = 2
)

// DealFilters narrows the deal list
type DealFilters struct {
	Stage    string
	OwnerID  *uuid.UUID
	ClientID *uuid.UUID
	Query    string
	Sort     string
	Page     int
	PageSize int
}

// Normalize applies paging defaults and trims the query
func (f *DealFilters) Normalize() {
	f.Query = strings.TrimSpace(f.Query)
	f.Stage = strings.ToUpper(strings.TrimSpace(f.Stage))
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// OrderClause maps Sort onto a whitelisted ORDER BY, newest first by default
func (f *DealFilters) OrderClause() string {
	if clause, ok := dealSortColumns[f.Sort]; ok {
		return clause
	}
	return "deals.created_at DESC"
}

// Offset is the row offset of the current page
func (f *DealFilters) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// DealListResponse is one page of deals
type DealListResponse struct {
	Deals    []DealResponse `json:"deals"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}
