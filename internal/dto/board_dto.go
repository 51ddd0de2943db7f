package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crm-pipeline-api/internal/domain"
)

// MoveDealRequest represents a drag-and-drop move on the board
// @Description position is the zero-based index in the destination column; omitted appends.
// @Description reason/actualValue/closeNotes are only read when the destination is a closed stage.
type MoveDealRequest struct {
	DealID      uuid.UUID           `json:"dealId" binding:"required" example:"539167fb-b599-41ba-9ead-344a6d0b3a2f"`
	Stage       string              `json:"stage" binding:"required" example:"NEGOTIATION"`
	SourceStage string              `json:"sourceStage,omitempty" example:"NEW_REQUEST"`
	Position    *int                `json:"position,omitempty" binding:"omitempty,min=0" example:"0"`
	Reason      string              `json:"reason,omitempty"`
	ActualValue decimal.NullDecimal `json:"actualValue" swaggertype:"string"`
	CloseNotes  *string             `json:"closeNotes,omitempty"`
	Version     *int                `json:"version,omitempty"`
}

// ReorderStageRequest lists every deal of a stage in its new order
type ReorderStageRequest struct {
	DealIDs []uuid.UUID `json:"dealIds" binding:"required"`
}

// StageTotals is the count and value of one stage
type StageTotals struct {
	Stage string          `json:"stage"`
	Count int             `json:"count"`
	Value decimal.Decimal `json:"value" swaggertype:"string"`
}

// MoveDealResponse is either the moved deal with the aggregate deltas, or a
// prompt asking for a close reason when NeedsCloseReason is set.
type MoveDealResponse struct {
	Deal                 *DealResponse         `json:"deal,omitempty"`
	Source               *StageTotals          `json:"source,omitempty"`
	Target               *StageTotals          `json:"target,omitempty"`
	TotalPipelineValue   decimal.Decimal       `json:"totalPipelineValue" swaggertype:"string"`
	SuggestedProbability *int                  `json:"suggestedProbability,omitempty"`
	NeedsCloseReason     bool                  `json:"needsCloseReason"`
	ReasonOptions        []domain.ReasonOption `json:"reasonOptions,omitempty"`
}

// StageColumnResponse is one board column
type StageColumnResponse struct {
	Stage         string          `json:"stage"`
	Label         string          `json:"label"`
	IsClosed      bool            `json:"isClosed"`
	Count         int             `json:"count"`
	TotalValue    decimal.Decimal `json:"totalValue" swaggertype:"string"`
	WeightedValue decimal.Decimal `json:"weightedValue" swaggertype:"string"`
	Deals         []DealResponse  `json:"deals"`
}

// BoardResponse is the full Kanban board
type BoardResponse struct {
	Stages                []StageColumnResponse `json:"stages"`
	TotalPipelineValue    decimal.Decimal       `json:"totalPipelineValue" swaggertype:"string"`
	WeightedPipelineValue decimal.Decimal       `json:"weightedPipelineValue" swaggertype:"string"`
	TotalDeals            int                   `json:"totalDeals"`
}

// BoardFilters narrows the deals shown on the board
type BoardFilters struct {
	OwnerID *uuid.UUID
}

// CacheKey identifies the cached board for these filters
func (f BoardFilters) CacheKey() string {
	if f.OwnerID == nil {
		return "board:all"
	}
	return "board:owner:" + f.OwnerID.String()
}
