package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
	"crm-pipeline-api/internal/service"
)

// BoardStream serves the live board websocket
type BoardStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error
}

type BoardHandler struct {
	pipelineService service.PipelineService
	stream          BoardStream
	logger          *zap.Logger
}

func NewBoardHandler(pipelineService service.PipelineService, stream BoardStream, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		pipelineService: pipelineService,
		stream:          stream,
		logger:          logger,
	}
}

// GetBoard godoc
// @Summary      Pipeline board
// @Description  All nine stage columns in canonical order with counts, totals and ordered deals
// @Tags         board
// @Produce      json
// @Param        ownerId query string false "Only deals owned by this user (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.BoardResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /board [get]
func (h *BoardHandler) GetBoard(c *gin.Context) {
	ownerID, ok := parseUUIDQuery(c, "ownerId")
	if !ok {
		return
	}

	board, err := h.pipelineService.GetBoard(c.Request.Context(), dto.BoardFilters{OwnerID: ownerID})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, board)
}

// MoveDeal godoc
// @Summary      Move deal
// @Description  Drag-and-drop move. Moving into CLOSED_LOST or DECLINED_TO_BID without a reason
// @Description  returns needsCloseReason with the allowed reasons and changes nothing.
// @Tags         board
// @Accept       json
// @Produce      json
// @Param        request body dto.MoveDealRequest true "Move"
// @Success      200 {object} response.SuccessResponse{data=dto.MoveDealResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Version conflict"
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /board/move [post]
func (h *BoardHandler) MoveDeal(c *gin.Context) {
	var req dto.MoveDealRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.pipelineService.MoveDeal(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, result)
}

// CloseDeal godoc
// @Summary      Close deal
// @Description  Closes a deal as won, lost or declined. Lost and declined require a reason.
// @Tags         deals
// @Accept       json
// @Produce      json
// @Param        dealId  path string               true "Deal ID (UUID)"
// @Param        request body dto.CloseDealRequest true "Close"
// @Success      200 {object} response.SuccessResponse{data=dto.MoveDealResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Version conflict"
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId}/close [post]
func (h *BoardHandler) CloseDeal(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	var req dto.CloseDealRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.pipelineService.CloseDeal(c.Request.Context(), dealID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, result)
}

// ReorderStage godoc
// @Summary      Reorder stage column
// @Description  dealIds must list exactly the deals currently in the stage
// @Tags         board
// @Accept       json
// @Param        stage   path string                  true "Stage"
// @Param        request body dto.ReorderStageRequest true "New order"
// @Success      204
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /board/stages/{stage}/order [put]
func (h *BoardHandler) ReorderStage(c *gin.Context) {
	var req dto.ReorderStageRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.pipelineService.ReorderStage(c.Request.Context(), c.Param("stage"), &req); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// BoardSocket godoc
// @Summary      Live board
// @Description  Websocket streaming deal_moved, deal_closed, deal_changed and board_reordered events
// @Tags         board
// @Param        token query string true "JWT access token"
// @Success      101 {string} string "Switching Protocols"
// @Failure      401 {object} response.ErrorResponse
// @Router       /board/ws [get]
func (h *BoardHandler) BoardSocket(c *gin.Context) {
	userID, _ := c.Request.Context().Value("user_id").(uuid.UUID)

	if err := h.stream.ServeWS(c.Writer, c.Request, userID); err != nil {
		h.logger.Warn("Board websocket upgrade failed",
			zap.String("userId", userID.String()),
			zap.Error(err))
	}
}
