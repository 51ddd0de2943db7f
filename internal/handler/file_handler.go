package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
	"crm-pipeline-api/internal/service"
)

type FileHandler struct {
	fileService service.FileService
}

func NewFileHandler(fileService service.FileService) *FileHandler {
	return &FileHandler{
		fileService: fileService,
	}
}

// UploadFile godoc
// @Summary      Upload deal file
// @Description  Uploading a filename that already exists on the deal stores a new version and keeps the old one as history
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        dealId      path     string true  "Deal ID (UUID)"
// @Param        file        formData file   true  "File"
// @Param        fileType    formData string false "ESTIMATE, CONTRACT, PROPOSAL, DRAWING, PHOTO, CORRESPONDENCE or OTHER"
// @Param        description formData string false "Description"
// @Success      201 {object} response.SuccessResponse{data=dto.DealFileResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId}/files [post]
func (h *FileHandler) UploadFile(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}

	var req dto.UploadFileRequest
	if err := c.ShouldBind(&req); err != nil {
		response.SendErrorWithDetails(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid form data", err.Error())
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "file is required")
		return
	}
	body, err := header.Open()
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Unreadable file")
		return
	}
	defer body.Close()

	file, err := h.fileService.UploadFile(c.Request.Context(), dealID, service.FileUpload{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        body,
		FileType:    req.FileType,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, file)
}

// ListFiles godoc
// @Summary      List deal files
// @Tags         files
// @Produce      json
// @Param        dealId  path  string true  "Deal ID (UUID)"
// @Param        history query bool   false "Include superseded versions"
// @Success      200 {object} response.SuccessResponse{data=[]dto.DealFileResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /deals/{dealId}/files [get]
func (h *FileHandler) ListFiles(c *gin.Context) {
	dealID, ok := parseUUIDParam(c, "dealId")
	if !ok {
		return
	}
	history, _ := strconv.ParseBool(c.Query("history"))

	files, err := h.fileService.ListFiles(c.Request.Context(), dealID, history)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, files)
}

// GetVersions godoc
// @Summary      File version history
// @Description  Every version of the file, newest first, starting from any version's ID
// @Tags         files
// @Produce      json
// @Param        fileId path string true "File ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=[]dto.DealFileResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /files/{fileId}/versions [get]
func (h *FileHandler) GetVersions(c *gin.Context) {
	fileID, ok := parseUUIDParam(c, "fileId")
	if !ok {
		return
	}

	versions, err := h.fileService.GetVersions(c.Request.Context(), fileID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, versions)
}

// GetDownloadURL godoc
// @Summary      File download link
// @Description  Presigned URL valid for 15 minutes
// @Tags         files
// @Produce      json
// @Param        fileId path string true "File ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.DownloadURLResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /files/{fileId}/download [get]
func (h *FileHandler) GetDownloadURL(c *gin.Context) {
	fileID, ok := parseUUIDParam(c, "fileId")
	if !ok {
		return
	}

	link, err := h.fileService.GetDownloadURL(c.Request.Context(), fileID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, link)
}

// DeleteFile godoc
// @Summary      Delete file version
// @Tags         files
// @Param        fileId path string true "File ID (UUID)"
// @Success      204
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /files/{fileId} [delete]
func (h *FileHandler) DeleteFile(c *gin.Context) {
	fileID, ok := parseUUIDParam(c, "fileId")
	if !ok {
		return
	}

	if err := h.fileService.DeleteFile(c.Request.Context(), fileID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
