package handler

import (
	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
)

// SchemaDocumentation pulls types that no handler returns directly into the
// swagger definitions: the websocket event payloads and the reason catalogue.
type SchemaDocumentation struct {
	MoveEvent    dto.MoveDealResponse    `json:"moveEvent"`
	ReasonOption domain.ReasonOption     `json:"reasonOption"`
	DealEvent    dto.DealResponse        `json:"dealEvent"`
	ReorderEvent dto.ReorderStageRequest `json:"reorderEvent"`
}

// GetSchemaDocumentation is never routed; swag reads its annotations only.
// @Summary      Schema documentation (not a real endpoint)
// @Description  Documents payload types carried by the live board websocket
// @Tags         internal
// @Produce      json
// @Success      200 {object} SchemaDocumentation
// @Router       /internal/schemas [get]
func GetSchemaDocumentation() {}
