package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
	"crm-pipeline-api/internal/service"
)

type ScheduleHandler struct {
	scheduleService service.ScheduleService
}

func NewScheduleHandler(scheduleService service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
	}
}

// CreateSchedule godoc
// @Summary      Create schedule
// @Description  Books a site visit, inspection or other event on a deal
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        dealId  path string              true "Deal ID (UUID)"
// @Param        request body dto.ScheduleRequest true "Schedule"
// @Success      201 {object} response.SuccessResponse{data=dto.ScheduleResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId}/schedules [post]
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	var req dto.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	schedule, err := h.scheduleService.CreateSchedule(c.Request.Context(), dealID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, schedule)
}

// ListDealSchedules godoc
// @Summary      Deal schedules
// @Tags         schedules
// @Produce      json
// @Param        dealId path string true "Deal ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=[]dto.ScheduleResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId}/schedules [get]
func (h *ScheduleHandler) ListDealSchedules(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	schedules, err := h.scheduleService.ListDealSchedules(c.Request.Context(), dealID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, schedules)
}

// ListSchedules godoc
// @Summary      Calendar
// @Description  Schedules across all deals between from and to inclusive, at most one year
// @Tags         schedules
// @Produce      json
// @Param        from         query string true  "From date (YYYY-MM-DD)"
// @Param        to           query string true  "To date (YYYY-MM-DD)"
// @Param        assignedToId query string false "Assignee (UUID)"
// @Param        status       query string false "Status"
// @Success      200 {object} response.SuccessResponse{data=[]dto.ScheduleResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /schedules [get]
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	var filter dto.ScheduleRangeFilter
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dto.DateLayout, raw)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid "+p.name+" date, expected YYYY-MM-DD")
			return
		}
		*p.dst = t
	}

	assignee, ok := parseUUIDQuery(c, "assignedToId")
	if !ok {
		return
	}
	filter.AssignedToID = assignee
	filter.Status = c.Query("status")

	schedules, err := h.scheduleService.ListSchedules(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, schedules)
}

// GetSchedule godoc
// @Summary      Get schedule
// @Tags         schedules
// @Produce      json
// @Param        scheduleId path string true "Schedule ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.ScheduleResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /schedules/{scheduleId} [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	scheduleID, ok := parseUUIDParam(c, "scheduleId")
	if !ok {
		return
	}

	schedule, err := h.scheduleService.GetSchedule(c.Request.Context(), scheduleID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, schedule)
}

// UpdateSchedule godoc
// @Summary      Update schedule
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        scheduleId path string              true "Schedule ID (UUID)"
// @Param        request    body dto.ScheduleRequest true "Schedule"
// @Success      200 {object} response.SuccessResponse{data=dto.ScheduleResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Version conflict"
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /schedules/{scheduleId} [put]
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	scheduleID, ok := parseUUIDParam(c, "scheduleId")
	if !ok {
		return
	}

	var req dto.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	schedule, err := h.scheduleService.UpdateSchedule(c.Request.Context(), scheduleID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, schedule)
}

// UpdateStatus godoc
// @Summary      Change schedule status
// @Description  Entering COMPLETED stamps completedAt once
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        scheduleId path string                          true "Schedule ID (UUID)"
// @Param        request    body dto.UpdateScheduleStatusRequest true "Status"
// @Success      200 {object} response.SuccessResponse{data=dto.ScheduleResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Version conflict"
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /schedules/{scheduleId}/status [patch]
func (h *ScheduleHandler) UpdateStatus(c *gin.Context) {
	scheduleID, ok := parseUUIDParam(c, "scheduleId")
	if !ok {
		return
	}

	var req dto.UpdateScheduleStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	schedule, err := h.scheduleService.UpdateStatus(c.Request.Context(), scheduleID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, schedule)
}

// CompleteSchedule godoc
// @Summary      Complete schedule
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        scheduleId path string                      true  "Schedule ID (UUID)"
// @Param        request    body dto.CompleteScheduleRequest false "Completion notes"
// @Success      200 {object} response.SuccessResponse{data=dto.ScheduleResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /schedules/{scheduleId}/complete [post]
func (h *ScheduleHandler) CompleteSchedule(c *gin.Context) {
	scheduleID, ok := parseUUIDParam(c, "scheduleId")
	if !ok {
		return
	}

	var req dto.CompleteScheduleRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	schedule, err := h.scheduleService.CompleteSchedule(c.Request.Context(), scheduleID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, schedule)
}

// DeleteSchedule godoc
// @Summary      Delete schedule
// @Tags         schedules
// @Param        scheduleId path string true "Schedule ID (UUID)"
// @Success      204
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /schedules/{scheduleId} [delete]
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	scheduleID, ok := parseUUIDParam(c, "scheduleId")
	if !ok {
		return
	}

	if err := h.scheduleService.DeleteSchedule(c.Request.Context(), scheduleID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
