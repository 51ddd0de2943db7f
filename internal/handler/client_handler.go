package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
	"crm-pipeline-api/internal/service"
)

type ClientHandler struct {
	clientService service.ClientService
}

func NewClientHandler(clientService service.ClientService) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
	}
}

// CreateClient godoc
// @Summary      Create client
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        request body dto.ClientRequest true "Client"
// @Success      201 {object} response.SuccessResponse{data=dto.ClientResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req dto.ClientRequest
	if !bindJSON(c, &req) {
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, client)
}

// ListClients godoc
// @Summary      List clients
// @Description  Paged client list with deal count and total deal value per client
// @Tags         clients
// @Produce      json
// @Param        q        query string false "Company or contact contains"
// @Param        status   query string false "ACTIVE, INACTIVE or PROSPECT"
// @Param        sort     query string false "name or created; prefix - for descending"
// @Param        page     query int    false "Page, from 1"
// @Param        pageSize query int    false "Page size, at most 100"
// @Success      200 {object} response.SuccessResponse{data=dto.ClientListResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /clients [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	clients, err := h.clientService.ListClients(c.Request.Context(), &dto.ClientFilters{
		Query:    c.Query("q"),
		Status:   c.Query("status"),
		Sort:     c.Query("sort"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, clients)
}

// SearchClients godoc
// @Summary      Live client search
// @Tags         clients
// @Produce      json
// @Param        q query string true "Search text"
// @Success      200 {object} response.SuccessResponse{data=[]dto.ClientSearchResult}
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /clients/search [get]
func (h *ClientHandler) SearchClients(c *gin.Context) {
	results, err := h.clientService.SearchClients(c.Request.Context(), c.Query("q"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, results)
}

// GetClient godoc
// @Summary      Get client
// @Tags         clients
// @Produce      json
// @Param        clientId path string true "Client ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.ClientResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /clients/{clientId} [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	clientID, ok := parseUUIDParam(c, "clientId")
	if !ok {
		return
	}

	client, err := h.clientService.GetClient(c.Request.Context(), clientID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, client)
}

// UpdateClient godoc
// @Summary      Update client
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        clientId path string            true "Client ID (UUID)"
// @Param        request  body dto.ClientRequest true "Client"
// @Success      200 {object} response.SuccessResponse{data=dto.ClientResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /clients/{clientId} [put]
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	clientID, ok := parseUUIDParam(c, "clientId")
	if !ok {
		return
	}

	var req dto.ClientRequest
	if !bindJSON(c, &req) {
		return
	}

	client, err := h.clientService.UpdateClient(c.Request.Context(), clientID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, client)
}

// DeleteClient godoc
// @Summary      Delete client
// @Description  Refused with 409 while the client still has deals
// @Tags         clients
// @Param        clientId path string true "Client ID (UUID)"
// @Success      204
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /clients/{clientId} [delete]
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	clientID, ok := parseUUIDParam(c, "clientId")
	if !ok {
		return
	}

	if err := h.clientService.DeleteClient(c.Request.Context(), clientID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
