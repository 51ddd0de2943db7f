package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
	"crm-pipeline-api/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type DealHandler struct {
	dealService   service.DealService
	exportService service.ExportService
}

func NewDealHandler(dealService service.DealService, exportService service.ExportService) *DealHandler {
	return &DealHandler{
		dealService:   dealService,
		exportService: exportService,
	}
}

// CreateDeal godoc
// @Summary      Create deal
// @Description  Creates a deal on the board. Stage defaults to NEW_REQUEST and the owner to the caller.
// @Tags         deals
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateDealRequest true "Deal"
// @Success      201 {object} response.SuccessResponse{data=dto.DealResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse "Client not found"
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals [post]
func (h *DealHandler) CreateDeal(c *gin.Context) {
	var req dto.CreateDealRequest
	if !bindJSON(c, &req) {
		return
	}

	deal, err := h.dealService.CreateDeal(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, deal)
}

// ListDeals godoc
// @Summary      List deals
// @Description  Paged deal list, newest first unless sort is given. stage is case-insensitive.
// @Tags         deals
// @Produce      json
// @Param        stage    query string false "Stage"
// @Param        ownerId  query string false "Owner ID (UUID)"
// @Param        clientId query string false "Client ID (UUID)"
// @Param        q        query string false "Title or client name contains"
// @Param        sort     query string false "title, created, value, expected_close, stage_changed; prefix - for descending"
// @Param        page     query int    false "Page, from 1"
// @Param        pageSize query int    false "Page size, at most 100"
// @Success      200 {object} response.SuccessResponse{data=dto.DealListResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals [get]
func (h *DealHandler) ListDeals(c *gin.Context) {
	filters, ok := dealFiltersFromQuery(c)
	if !ok {
		return
	}

	deals, err := h.dealService.ListDeals(c.Request.Context(), filters)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, deals)
}

// SearchDeals godoc
// @Summary      Live deal search
// @Description  Returns at most 10 deals whose title or client matches q. Queries shorter than 2 characters return nothing.
// @Tags         deals
// @Produce      json
// @Param        q query string true "Search text"
// @Success      200 {object} response.SuccessResponse{data=[]dto.DealSearchResult}
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/search [get]
func (h *DealHandler) SearchDeals(c *gin.Context) {
	results, err := h.dealService.SearchDeals(c.Request.Context(), c.Query("q"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, results)
}

// ExportDeals godoc
// @Summary      Export deals
// @Description  Downloads the filtered deal list as an xlsx workbook
// @Tags         deals
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        stage    query string false "Stage"
// @Param        ownerId  query string false "Owner ID (UUID)"
// @Param        clientId query string false "Client ID (UUID)"
// @Param        q        query string false "Title or client name contains"
// @Success      200 {file} file
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/export [get]
func (h *DealHandler) ExportDeals(c *gin.Context) {
	filters, ok := dealFiltersFromQuery(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportDeals(c.Request.Context(), filters)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GetDeal godoc
// @Summary      Get deal
// @Description  Deal with its current files, recent activity, schedules and comment threads
// @Tags         deals
// @Produce      json
// @Param        dealId path string true "Deal ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.DealDetailResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId} [get]
func (h *DealHandler) GetDeal(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	deal, err := h.dealService.GetDeal(c.Request.Context(), dealID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, deal)
}

// UpdateDeal godoc
// @Summary      Update deal
// @Description  Replaces the editable fields. Send version to fail with 409 on concurrent edits.
// @Tags         deals
// @Accept       json
// @Produce      json
// @Param        dealId  path string                true "Deal ID (UUID)"
// @Param        request body dto.UpdateDealRequest true "Deal"
// @Success      200 {object} response.SuccessResponse{data=dto.DealResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Version conflict"
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId} [put]
func (h *DealHandler) UpdateDeal(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	var req dto.UpdateDealRequest
	if !bindJSON(c, &req) {
		return
	}

	deal, err := h.dealService.UpdateDeal(c.Request.Context(), dealID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, deal)
}

// DeleteDeal godoc
// @Summary      Delete deal
// @Description  Deletes the deal with its files, schedules, comments and activity
// @Tags         deals
// @Param        dealId path string true "Deal ID (UUID)"
// @Success      204
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId} [delete]
func (h *DealHandler) DeleteDeal(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	if err := h.dealService.DeleteDeal(c.Request.Context(), dealID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetActivities godoc
// @Summary      Deal activity
// @Description  Most recent audit entries first
// @Tags         deals
// @Produce      json
// @Param        dealId path  string true  "Deal ID (UUID)"
// @Param        limit  query int    false "At most 100, default 20"
// @Success      200 {object} response.SuccessResponse{data=[]dto.ActivityResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId}/activities [get]
func (h *DealHandler) GetActivities(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	activities, err := h.dealService.GetActivities(c.Request.Context(), dealID, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, activities)
}

func dealFiltersFromQuery(c *gin.Context) (*dto.DealFilters, bool) {
	ownerID, ok := parseUUIDQuery(c, "ownerId")
	if !ok {
		return nil, false
	}
	clientID, ok := parseUUIDQuery(c, "clientId")
	if !ok {
		return nil, false
	}
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	return &dto.DealFilters{
		Stage:    c.Query("stage"),
		OwnerID:  ownerID,
		ClientID: clientID,
		Query:    c.Query("q"),
		Sort:     c.Query("sort"),
		Page:     page,
		PageSize: pageSize,
	}, true
}
