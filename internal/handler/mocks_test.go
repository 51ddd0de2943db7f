package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
	"crm-pipeline-api/internal/service"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// decodeData unmarshals the data member of a success envelope into v
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp response.SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var resp response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal error response: %v", err)
	}
	return resp.Error
}

// MockDealService is a mock implementation of DealService
type MockDealService struct {
	CreateDealFunc    func(ctx context.Context, req *dto.CreateDealRequest) (*dto.DealResponse, error)
	GetDealFunc       func(ctx context.Context, dealID uuid.UUID) (*dto.DealDetailResponse, error)
	ListDealsFunc     func(ctx context.Context, filters *dto.DealFilters) (*dto.DealListResponse, error)
	UpdateDealFunc    func(ctx context.Context, dealID uuid.UUID, req *dto.UpdateDealRequest) (*dto.DealResponse, error)
	DeleteDealFunc    func(ctx context.Context, dealID uuid.UUID) error
	SearchDealsFunc   func(ctx context.Context, query string) ([]dto.DealSearchResult, error)
	GetActivitiesFunc func(ctx context.Context, dealID uuid.UUID, limit int) ([]dto.ActivityResponse, error)
}

var _ service.DealService = (*MockDealService)(nil)

func (m *MockDealService) CreateDeal(ctx context.Context, req *dto.CreateDealRequest) (*dto.DealResponse, error) {
	if m.CreateDealFunc != nil {
		return m.CreateDealFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockDealService) GetDeal(ctx context.Context, dealID uuid.UUID) (*dto.DealDetailResponse, error) {
	if m.GetDealFunc != nil {
		return m.GetDealFunc(ctx, dealID)
	}
	return nil, nil
}

func (m *MockDealService) ListDeals(ctx context.Context, filters *dto.DealFilters) (*dto.DealListResponse, error) {
	if m.ListDealsFunc != nil {
		return m.ListDealsFunc(ctx, filters)
	}
	return &dto.DealListResponse{}, nil
}

func (m *MockDealService) UpdateDeal(ctx context.Context, dealID uuid.UUID, req *dto.UpdateDealRequest) (*dto.DealResponse, error) {
	if m.UpdateDealFunc != nil {
		return m.UpdateDealFunc(ctx, dealID, req)
	}
	return nil, nil
}

func (m *MockDealService) DeleteDeal(ctx context.Context, dealID uuid.UUID) error {
	if m.DeleteDealFunc != nil {
		return m.DeleteDealFunc(ctx, dealID)
	}
	return nil
}

func (m *MockDealService) SearchDeals(ctx context.Context, query string) ([]dto.DealSearchResult, error) {
	if m.SearchDealsFunc != nil {
		return m.SearchDealsFunc(ctx, query)
	}
	return []dto.DealSearchResult{}, nil
}

func (m *MockDealService) GetActivities(ctx context.Context, dealID uuid.UUID, limit int) ([]dto.ActivityResponse, error) {
	if m.GetActivitiesFunc != nil {
		return m.GetActivitiesFunc(ctx, dealID, limit)
	}
	return []dto.ActivityResponse{}, nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	ExportDealsFunc func(ctx context.Context, filters *dto.DealFilters) ([]byte, string, error)
}

func (m *MockExportService) ExportDeals(ctx context.Context, filters *dto.DealFilters) ([]byte, string, error) {
	if m.ExportDealsFunc != nil {
		return m.ExportDealsFunc(ctx, filters)
	}
	return nil, "", nil
}

// MockPipelineService is a mock implementation of PipelineService
type MockPipelineService struct {
	GetBoardFunc     func(ctx context.Context, filters dto.BoardFilters) (*dto.BoardResponse, error)
	MoveDealFunc     func(ctx context.Context, req *dto.MoveDealRequest) (*dto.MoveDealResponse, error)
	CloseDealFunc    func(ctx context.Context, dealID uuid.UUID, req *dto.CloseDealRequest) (*dto.MoveDealResponse, error)
	ReorderStageFunc func(ctx context.Context, stage string, req *dto.ReorderStageRequest) error
}

var _ service.PipelineService = (*MockPipelineService)(nil)

func (m *MockPipelineService) GetBoard(ctx context.Context, filters dto.BoardFilters) (*dto.BoardResponse, error) {
	if m.GetBoardFunc != nil {
		return m.GetBoardFunc(ctx, filters)
	}
	return &dto.BoardResponse{}, nil
}

func (m *MockPipelineService) MoveDeal(ctx context.Context, req *dto.MoveDealRequest) (*dto.MoveDealResponse, error) {
	if m.MoveDealFunc != nil {
		return m.MoveDealFunc(ctx, req)
	}
	return &dto.MoveDealResponse{}, nil
}

func (m *MockPipelineService) CloseDeal(ctx context.Context, dealID uuid.UUID, req *dto.CloseDealRequest) (*dto.MoveDealResponse, error) {
	if m.CloseDealFunc != nil {
		return m.CloseDealFunc(ctx, dealID, req)
	}
	return &dto.MoveDealResponse{}, nil
}

func (m *MockPipelineService) ReorderStage(ctx context.Context, stage string, req *dto.ReorderStageRequest) error {
	if m.ReorderStageFunc != nil {
		return m.ReorderStageFunc(ctx, stage, req)
	}
	return nil
}

// MockFileService is a mock implementation of FileService
type MockFileService struct {
	UploadFileFunc     func(ctx context.Context, dealID uuid.UUID, upload service.FileUpload) (*dto.DealFileResponse, error)
	ListFilesFunc      func(ctx context.Context, dealID uuid.UUID, includeHistory bool) ([]dto.DealFileResponse, error)
	GetVersionsFunc    func(ctx context.Context, fileID uuid.UUID) ([]dto.DealFileResponse, error)
	GetDownloadURLFunc func(ctx context.Context, fileID uuid.UUID) (*dto.DownloadURLResponse, error)
	DeleteFileFunc     func(ctx context.Context, fileID uuid.UUID) error
}

var _ service.FileService = (*MockFileService)(nil)

func (m *MockFileService) UploadFile(ctx context.Context, dealID uuid.UUID, upload service.FileUpload) (*dto.DealFileResponse, error) {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, dealID, upload)
	}
	return nil, nil
}

func (m *MockFileService) ListFiles(ctx context.Context, dealID uuid.UUID, includeHistory bool) ([]dto.DealFileResponse, error) {
	if m.ListFilesFunc != nil {
		return m.ListFilesFunc(ctx, dealID, includeHistory)
	}
	return []dto.DealFileResponse{}, nil
}

func (m *MockFileService) GetVersions(ctx context.Context, fileID uuid.UUID) ([]dto.DealFileResponse, error) {
	if m.GetVersionsFunc != nil {
		return m.GetVersionsFunc(ctx, fileID)
	}
	return []dto.DealFileResponse{}, nil
}

func (m *MockFileService) GetDownloadURL(ctx context.Context, fileID uuid.UUID) (*dto.DownloadURLResponse, error) {
	if m.GetDownloadURLFunc != nil {
		return m.GetDownloadURLFunc(ctx, fileID)
	}
	return nil, nil
}

func (m *MockFileService) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, fileID)
	}
	return nil
}

// MockScheduleService is a mock implementation of ScheduleService
type MockScheduleService struct {
	CreateScheduleFunc    func(ctx context.Context, dealID uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error)
	GetScheduleFunc       func(ctx context.Context, scheduleID uuid.UUID) (*dto.ScheduleResponse, error)
	ListDealSchedulesFunc func(ctx context.Context, dealID uuid.UUID) ([]dto.ScheduleResponse, error)
	ListSchedulesFunc     func(ctx context.Context, filter dto.ScheduleRangeFilter) ([]dto.ScheduleResponse, error)
	UpdateScheduleFunc    func(ctx context.Context, scheduleID uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error)
	UpdateStatusFunc      func(ctx context.Context, scheduleID uuid.UUID, req *dto.UpdateScheduleStatusRequest) (*dto.ScheduleResponse, error)
	CompleteScheduleFunc  func(ctx context.Context, scheduleID uuid.UUID, req *dto.CompleteScheduleRequest) (*dto.ScheduleResponse, error)
	DeleteScheduleFunc    func(ctx context.Context, scheduleID uuid.UUID) error
}

var _ service.ScheduleService = (*MockScheduleService)(nil)

func (m *MockScheduleService) CreateSchedule(ctx context.Context, dealID uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error) {
	if m.CreateScheduleFunc != nil {
		return m.CreateScheduleFunc(ctx, dealID, req)
	}
	return nil, nil
}

func (m *MockScheduleService) GetSchedule(ctx context.Context, scheduleID uuid.UUID) (*dto.ScheduleResponse, error) {
	if m.GetScheduleFunc != nil {
		return m.GetScheduleFunc(ctx, scheduleID)
	}
	return nil, nil
}

func (m *MockScheduleService) ListDealSchedules(ctx context.Context, dealID uuid.UUID) ([]dto.ScheduleResponse, error) {
	if m.ListDealSchedulesFunc != nil {
		return m.ListDealSchedulesFunc(ctx, dealID)
	}
	return []dto.ScheduleResponse{}, nil
}

func (m *MockScheduleService) ListSchedules(ctx context.Context, filter dto.ScheduleRangeFilter) ([]dto.ScheduleResponse, error) {
	if m.ListSchedulesFunc != nil {
		return m.ListSchedulesFunc(ctx, filter)
	}
	return []dto.ScheduleResponse{}, nil
}

func (m *MockScheduleService) UpdateSchedule(ctx context.Context, scheduleID uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error) {
	if m.UpdateScheduleFunc != nil {
		return m.UpdateScheduleFunc(ctx, scheduleID, req)
	}
	return nil, nil
}

func (m *MockScheduleService) UpdateStatus(ctx context.Context, scheduleID uuid.UUID, req *dto.UpdateScheduleStatusRequest) (*dto.ScheduleResponse, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, scheduleID, req)
	}
	return nil, nil
}

func (m *MockScheduleService) CompleteSchedule(ctx context.Context, scheduleID uuid.UUID, req *dto.CompleteScheduleRequest) (*dto.ScheduleResponse, error) {
	if m.CompleteScheduleFunc != nil {
		return m.CompleteScheduleFunc(ctx, scheduleID, req)
	}
	return nil, nil
}

func (m *MockScheduleService) DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error {
	if m.DeleteScheduleFunc != nil {
		return m.DeleteScheduleFunc(ctx, scheduleID)
	}
	return nil
}

// MockCommentService is a mock implementation of CommentService
type MockCommentService struct {
	AddCommentFunc    func(ctx context.Context, dealID uuid.UUID, req *dto.CreateCommentRequest) (*dto.CommentResponse, error)
	ListCommentsFunc  func(ctx context.Context, dealID uuid.UUID) ([]*dto.CommentThreadResponse, error)
	UpdateCommentFunc func(ctx context.Context, commentID uuid.UUID, req *dto.UpdateCommentRequest) (*dto.CommentResponse, error)
	DeleteCommentFunc func(ctx context.Context, commentID uuid.UUID) error
}

var _ service.CommentService = (*MockCommentService)(nil)

func (m *MockCommentService) AddComment(ctx context.Context, dealID uuid.UUID, req *dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, dealID, req)
	}
	return nil, nil
}

func (m *MockCommentService) ListComments(ctx context.Context, dealID uuid.UUID) ([]*dto.CommentThreadResponse, error) {
	if m.ListCommentsFunc != nil {
		return m.ListCommentsFunc(ctx, dealID)
	}
	return []*dto.CommentThreadResponse{}, nil
}

func (m *MockCommentService) UpdateComment(ctx context.Context, commentID uuid.UUID, req *dto.UpdateCommentRequest) (*dto.CommentResponse, error) {
	if m.UpdateCommentFunc != nil {
		return m.UpdateCommentFunc(ctx, commentID, req)
	}
	return nil, nil
}

func (m *MockCommentService) DeleteComment(ctx context.Context, commentID uuid.UUID) error {
	if m.DeleteCommentFunc != nil {
		return m.DeleteCommentFunc(ctx, commentID)
	}
	return nil
}

// MockClientService is a mock implementation of ClientService
type MockClientService struct {
	CreateClientFunc  func(ctx context.Context, req *dto.ClientRequest) (*dto.ClientResponse, error)
	GetClientFunc     func(ctx context.Context, clientID uuid.UUID) (*dto.ClientResponse, error)
	ListClientsFunc   func(ctx context.Context, filters *dto.ClientFilters) (*dto.ClientListResponse, error)
	SearchClientsFunc func(ctx context.Context, query string) ([]dto.ClientSearchResult, error)
	UpdateClientFunc  func(ctx context.Context, clientID uuid.UUID, req *dto.ClientRequest) (*dto.ClientResponse, error)
	DeleteClientFunc  func(ctx context.Context, clientID uuid.UUID) error
}

var _ service.ClientService = (*MockClientService)(nil)

func (m *MockClientService) CreateClient(ctx context.Context, req *dto.ClientRequest) (*dto.ClientResponse, error) {
	if m.CreateClientFunc != nil {
		return m.CreateClientFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockClientService) GetClient(ctx context.Context, clientID uuid.UUID) (*dto.ClientResponse, error) {
	if m.GetClientFunc != nil {
		return m.GetClientFunc(ctx, clientID)
	}
	return nil, nil
}

func (m *MockClientService) ListClients(ctx context.Context, filters *dto.ClientFilters) (*dto.ClientListResponse, error) {
	if m.ListClientsFunc != nil {
		return m.ListClientsFunc(ctx, filters)
	}
	return &dto.ClientListResponse{}, nil
}

func (m *MockClientService) SearchClients(ctx context.Context, query string) ([]dto.ClientSearchResult, error) {
	if m.SearchClientsFunc != nil {
		return m.SearchClientsFunc(ctx, query)
	}
	return []dto.ClientSearchResult{}, nil
}

func (m *MockClientService) UpdateClient(ctx context.Context, clientID uuid.UUID, req *dto.ClientRequest) (*dto.ClientResponse, error) {
	if m.UpdateClientFunc != nil {
		return m.UpdateClientFunc(ctx, clientID, req)
	}
	return nil, nil
}

func (m *MockClientService) DeleteClient(ctx context.Context, clientID uuid.UUID) error {
	if m.DeleteClientFunc != nil {
		return m.DeleteClientFunc(ctx, clientID)
	}
	return nil
}

// MockBoardStream records websocket requests instead of upgrading them
type MockBoardStream struct {
	ServeWSFunc func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error
}

func (m *MockBoardStream) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	if m.ServeWSFunc != nil {
		return m.ServeWSFunc(w, r, userID)
	}
	return nil
}
