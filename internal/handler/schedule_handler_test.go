package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
)

func newScheduleTestRouter(ss *MockScheduleService) *gin.Engine {
	handler := NewScheduleHandler(ss)
	router := setupTestRouter()
	router.POST("/deals/:dealId/schedules", handler.CreateSchedule)
	router.GET("/deals/:dealId/schedules", handler.ListDealSchedules)
	router.GET("/schedules", handler.ListSchedules)
	router.GET("/schedules/:scheduleId", handler.GetSchedule)
	router.PUT("/schedules/:scheduleId", handler.UpdateSchedule)
	router.PATCH("/schedules/:scheduleId/status", handler.UpdateStatus)
	router.POST("/schedules/:scheduleId/complete", handler.CompleteSchedule)
	router.DELETE("/schedules/:scheduleId", handler.DeleteSchedule)
	return router
}

func TestScheduleHandler_CreateSchedule(t *testing.T) {
	dealID := uuid.New()

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "site visit",
			body:           dto.ScheduleRequest{Title: "Site visit", ScheduledDate: "2026-05-04", EventType: "SITE_VISIT"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "weekly recurrence",
			body:           dto.ScheduleRequest{Title: "Check-in", ScheduledDate: "2026-05-04", RecurrencePattern: "WEEKLY"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "date in the wrong layout",
			body:           dto.ScheduleRequest{Title: "Site visit", ScheduledDate: "05/04/2026"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "time in the wrong layout",
			body:           map[string]interface{}{"title": "Site visit", "scheduledDate": "2026-05-04", "scheduledTime": "9am"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown recurrence",
			body:           dto.ScheduleRequest{Title: "Check-in", ScheduledDate: "2026-05-04", RecurrencePattern: "YEARLY"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing title",
			body:           dto.ScheduleRequest{ScheduledDate: "2026-05-04"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := &MockScheduleService{
				CreateScheduleFunc: func(ctx context.Context, id uuid.UUID, req *dto.ScheduleRequest) (*dto.ScheduleResponse, error) {
					return &dto.ScheduleResponse{ID: uuid.New(), DealID: id, Title: req.Title, ScheduledDate: req.ScheduledDate}, nil
				},
			}
			w := postJSON(newScheduleTestRouter(ss), http.MethodPost, "/deals/"+dealID.String()+"/schedules", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestScheduleHandler_ListSchedules(t *testing.T) {
	assignee := uuid.New()

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		check          func(*testing.T, dto.ScheduleRangeFilter)
	}{
		{
			name:           "no filters",
			query:          "",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, f dto.ScheduleRangeFilter) {
				assert.True(t, f.From.IsZero())
				assert.True(t, f.To.IsZero())
				assert.Nil(t, f.AssignedToID)
			},
		},
		{
			name:           "calendar window",
			query:          "?from=2026-05-01&to=2026-05-31&status=SCHEDULED&assignedToId=" + assignee.String(),
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, f dto.ScheduleRangeFilter) {
				assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), f.From)
				assert.Equal(t, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), f.To)
				assert.Equal(t, "SCHEDULED", f.Status)
				require.NotNil(t, f.AssignedToID)
				assert.Equal(t, assignee, *f.AssignedToID)
			},
		},
		{name: "bad from", query: "?from=May", expectedStatus: http.StatusBadRequest},
		{name: "bad to", query: "?to=2026-13-01", expectedStatus: http.StatusBadRequest},
		{name: "bad assignee", query: "?assignedToId=x", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *dto.ScheduleRangeFilter
			ss := &MockScheduleService{
				ListSchedulesFunc: func(ctx context.Context, filter dto.ScheduleRangeFilter) ([]dto.ScheduleResponse, error) {
					got = &filter
					return []dto.ScheduleResponse{}, nil
				},
			}
			w := httptest.NewRecorder()
			newScheduleTestRouter(ss).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedules"+tt.query, nil))

			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.check == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			tt.check(t, *got)
		})
	}
}

func TestScheduleHandler_UpdateStatus(t *testing.T) {
	scheduleID := uuid.New()
	ss := &MockScheduleService{
		UpdateStatusFunc: func(ctx context.Context, id uuid.UUID, req *dto.UpdateScheduleStatusRequest) (*dto.ScheduleResponse, error) {
			if req.Status == "DONE" {
				return nil, response.NewAppError(response.ErrCodeValidation, "Invalid status", req.Status)
			}
			return &dto.ScheduleResponse{ID: id, Status: req.Status}, nil
		},
	}
	router := newScheduleTestRouter(ss)
	path := "/schedules/" + scheduleID.String() + "/status"

	w := postJSON(router, http.MethodPatch, path, dto.UpdateScheduleStatusRequest{Status: "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ScheduleResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "IN_PROGRESS", resp.Status)

	w = postJSON(router, http.MethodPatch, path, dto.UpdateScheduleStatusRequest{Status: "DONE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, http.MethodPatch, path, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandler_CompleteSchedule(t *testing.T) {
	scheduleID := uuid.New()
	path := "/schedules/" + scheduleID.String() + "/complete"

	t.Run("without a body", func(t *testing.T) {
		var got *dto.CompleteScheduleRequest
		ss := &MockScheduleService{
			CompleteScheduleFunc: func(ctx context.Context, id uuid.UUID, req *dto.CompleteScheduleRequest) (*dto.ScheduleResponse, error) {
				got = req
				now := time.Now()
				return &dto.ScheduleResponse{ID: id, Status: "COMPLETED", CompletedAt: &now}, nil
			},
		}
		w := httptest.NewRecorder()
		newScheduleTestRouter(ss).ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, got)
		assert.Nil(t, got.CompletionNotes)
	})

	t.Run("with notes", func(t *testing.T) {
		var got *dto.CompleteScheduleRequest
		ss := &MockScheduleService{
			CompleteScheduleFunc: func(ctx context.Context, id uuid.UUID, req *dto.CompleteScheduleRequest) (*dto.ScheduleResponse, error) {
				got = req
				return &dto.ScheduleResponse{ID: id, Status: "COMPLETED"}, nil
			},
		}
		w := postJSON(newScheduleTestRouter(ss), http.MethodPost, path, map[string]string{"completionNotes": "Measured roof"})

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, got.CompletionNotes)
		assert.Equal(t, "Measured roof", *got.CompletionNotes)
	})
}

func TestScheduleHandler_GetAndDelete(t *testing.T) {
	known := uuid.New()
	ss := &MockScheduleService{
		GetScheduleFunc: func(ctx context.Context, id uuid.UUID) (*dto.ScheduleResponse, error) {
			if id != known {
				return nil, response.NewAppError(response.ErrCodeNotFound, "Schedule not found", "")
			}
			return &dto.ScheduleResponse{ID: id}, nil
		},
		DeleteScheduleFunc: func(ctx context.Context, id uuid.UUID) error {
			if id != known {
				return response.NewAppError(response.ErrCodeNotFound, "Schedule not found", "")
			}
			return nil
		},
	}
	router := newScheduleTestRouter(ss)

	tests := []struct {
		method string
		id     string
		want   int
	}{
		{http.MethodGet, known.String(), http.StatusOK},
		{http.MethodGet, uuid.NewString(), http.StatusNotFound},
		{http.MethodGet, "x", http.StatusBadRequest},
		{http.MethodDelete, known.String(), http.StatusNoContent},
		{http.MethodDelete, uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tt.method, "/schedules/"+tt.id, nil))
		assert.Equal(t, tt.want, w.Code, "%s %s", tt.method, tt.id)
	}
}
