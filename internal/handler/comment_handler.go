package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
	"crm-pipeline-api/internal/service"
)

type CommentHandler struct {
	commentService service.CommentService
}

func NewCommentHandler(commentService service.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// AddComment godoc
// @Summary      Add comment
// @Description  Set parentId to reply within a thread. The parent's author is notified.
// @Tags         comments
// @Accept       json
// @Produce      json
// @Param        dealId  path string                   true "Deal ID (UUID)"
// @Param        request body dto.CreateCommentRequest true "Comment"
// @Success      201 {object} response.SuccessResponse{data=dto.CommentResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId}/comments [post]
func (h *CommentHandler) AddComment(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	var req dto.CreateCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.commentService.AddComment(c.Request.Context(), dealID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, comment)
}

// ListComments godoc
// @Summary      Deal comment threads
// @Tags         comments
// @Produce      json
// @Param        dealId path string true "Deal ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=[]dto.CommentThreadResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId}/comments [get]
func (h *CommentHandler) ListComments(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	threads, err := h.commentService.ListComments(c.Request.Context(), dealID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, threads)
}

// UpdateComment godoc
// @Summary      Edit comment
// @Description  Only the author may edit
// @Tags         comments
// @Accept       json
// @Produce      json
// @Param        commentId path string                   true "Comment ID (UUID)"
// @Param        request   body dto.UpdateCommentRequest true "Comment"
// @Success      200 {object} response.SuccessResponse{data=dto.CommentResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /comments/{commentId} [put]
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	commentID, ok := parseUUIDParam(c, "commentId")
	if !ok {
		return
	}

	var req dto.UpdateCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.commentService.UpdateComment(c.Request.Context(), commentID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, comment)
}

// DeleteComment godoc
// @Summary      Delete comment
// @Description  Deletes the comment and its replies. Allowed for the author and admins.
// @Tags         comments
// @Param        commentId path string true "Comment ID (UUID)"
// @Success      204
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /comments/{commentId} [delete]
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, ok := parseUUIDParam(c, "commentId")
	if !ok {
		return
	}

	if err := h.commentService.DeleteComment(c.Request.Context(), commentID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
