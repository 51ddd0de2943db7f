package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
)

func newBoardTestRouter(ps *MockPipelineService, stream *MockBoardStream) *gin.Engine {
	if stream == nil {
		stream = &MockBoardStream{}
	}
	handler := NewBoardHandler(ps, stream, zap.NewNop())
	router := setupTestRouter()
	router.GET("/board", handler.GetBoard)
	router.POST("/board/move", handler.MoveDeal)
	router.PUT("/board/stages/:stage/order", handler.ReorderStage)
	router.POST("/deals/:dealId/close", handler.CloseDeal)
	return router
}

func postJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBoardHandler_GetBoard(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name           string
		query          string
		wantOwner      *uuid.UUID
		expectedStatus int
	}{
		{"whole pipeline", "", nil, http.StatusOK},
		{"one owner", "?ownerId=" + ownerID.String(), &ownerID, http.StatusOK},
		{"malformed owner", "?ownerId=42", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *dto.BoardFilters
			ps := &MockPipelineService{
				GetBoardFunc: func(ctx context.Context, filters dto.BoardFilters) (*dto.BoardResponse, error) {
					got = &filters
					return &dto.BoardResponse{
						Stages:             []dto.StageColumnResponse{{Stage: "NEW_REQUEST", Label: "New Request", Count: 1}},
						TotalPipelineValue: decimal.NewFromInt(1000),
						TotalDeals:         1,
					}, nil
				},
			}

			w := httptest.NewRecorder()
			newBoardTestRouter(ps, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/board"+tt.query, nil))

			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantOwner, got.OwnerID)

			var board dto.BoardResponse
			decodeData(t, w, &board)
			assert.Equal(t, 1, board.TotalDeals)
			assert.True(t, decimal.NewFromInt(1000).Equal(board.TotalPipelineValue))
		})
	}
}

func TestBoardHandler_MoveDeal(t *testing.T) {
	dealID := uuid.New()

	tests := []struct {
		name           string
		body           interface{}
		result         *dto.MoveDealResponse
		err            error
		expectedStatus int
		check          func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "moved",
			body: dto.MoveDealRequest{DealID: dealID, Stage: "NEGOTIATION"},
			result: &dto.MoveDealResponse{
				Deal:   &dto.DealResponse{ID: dealID, Stage: "NEGOTIATION"},
				Target: &dto.StageTotals{Stage: "NEGOTIATION", Count: 1, Value: decimal.NewFromInt(500)},
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp dto.MoveDealResponse
				decodeData(t, w, &resp)
				require.NotNil(t, resp.Deal)
				assert.Equal(t, "NEGOTIATION", resp.Deal.Stage)
				assert.False(t, resp.NeedsCloseReason)
			},
		},
		{
			name: "lost without reason asks for one",
			body: dto.MoveDealRequest{DealID: dealID, Stage: "CLOSED_LOST"},
			result: &dto.MoveDealResponse{
				NeedsCloseReason: true,
				ReasonOptions:    []domain.ReasonOption{{Code: "PRICE", Label: "Price"}},
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp dto.MoveDealResponse
				decodeData(t, w, &resp)
				assert.True(t, resp.NeedsCloseReason)
				assert.Nil(t, resp.Deal)
				assert.Len(t, resp.ReasonOptions, 1)
			},
		},
		{
			name:           "missing deal id",
			body:           map[string]string{"stage": "NEGOTIATION"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative position",
			body:           map[string]interface{}{"dealId": dealID, "stage": "NEGOTIATION", "position": -1},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown stage",
			body:           dto.MoveDealRequest{DealID: dealID, Stage: "ARCHIVED"},
			err:            response.NewAppError(response.ErrCodeValidation, "Invalid stage", "ARCHIVED"),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "stale version",
			body:           dto.MoveDealRequest{DealID: dealID, Stage: "NEGOTIATION"},
			err:            response.NewAppError(response.ErrCodeConflict, "Deal was modified by someone else", ""),
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := &MockPipelineService{
				MoveDealFunc: func(ctx context.Context, req *dto.MoveDealRequest) (*dto.MoveDealResponse, error) {
					return tt.result, tt.err
				},
			}

			w := postJSON(newBoardTestRouter(ps, nil), http.MethodPost, "/board/move", tt.body)

			if w.Code != tt.expectedStatus {
				t.Errorf("MoveDeal() status = %v, want %v", w.Code, tt.expectedStatus)
			}
			if tt.check != nil {
				tt.check(t, w)
			}
		})
	}
}

func TestBoardHandler_CloseDeal(t *testing.T) {
	dealID := uuid.New()

	tests := []struct {
		name           string
		path           string
		body           interface{}
		expectedStatus int
	}{
		{"won", "/deals/" + dealID.String() + "/close", map[string]interface{}{"stage": "CLOSED_WON", "actualValue": "1250.50"}, http.StatusOK},
		{"lost with reason", "/deals/" + dealID.String() + "/close", dto.CloseDealRequest{Stage: "CLOSED_LOST", Reason: "PRICE"}, http.StatusOK},
		{"not a closing stage", "/deals/" + dealID.String() + "/close", dto.CloseDealRequest{Stage: "NEGOTIATION"}, http.StatusBadRequest},
		{"malformed id", "/deals/abc/close", dto.CloseDealRequest{Stage: "CLOSED_WON"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *dto.CloseDealRequest
			ps := &MockPipelineService{
				CloseDealFunc: func(ctx context.Context, id uuid.UUID, req *dto.CloseDealRequest) (*dto.MoveDealResponse, error) {
					assert.Equal(t, dealID, id)
					got = req
					return &dto.MoveDealResponse{Deal: &dto.DealResponse{ID: id, Stage: req.Stage}}, nil
				},
			}

			w := postJSON(newBoardTestRouter(ps, nil), http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				require.NotNil(t, got)
			}
		})
	}

	t.Run("actual value is parsed as a decimal", func(t *testing.T) {
		var got *dto.CloseDealRequest
		ps := &MockPipelineService{
			CloseDealFunc: func(ctx context.Context, id uuid.UUID, req *dto.CloseDealRequest) (*dto.MoveDealResponse, error) {
				got = req
				return &dto.MoveDealResponse{}, nil
			},
		}
		w := postJSON(newBoardTestRouter(ps, nil), http.MethodPost, "/deals/"+dealID.String()+"/close",
			map[string]interface{}{"stage": "CLOSED_WON", "actualValue": "1250.50"})

		require.Equal(t, http.StatusOK, w.Code)
		require.True(t, got.ActualValue.Valid)
		assert.Equal(t, "1250.5", got.ActualValue.Decimal.String())
	})
}

func TestBoardHandler_ReorderStage(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	var gotStage string
	var gotIDs []uuid.UUID
	ps := &MockPipelineService{
		ReorderStageFunc: func(ctx context.Context, stage string, req *dto.ReorderStageRequest) error {
			gotStage = stage
			gotIDs = req.DealIDs
			if stage == "BOGUS" {
				return response.NewAppError(response.ErrCodeValidation, "Invalid stage", stage)
			}
			return nil
		},
	}
	router := newBoardTestRouter(ps, nil)

	w := postJSON(router, http.MethodPut, "/board/stages/NEGOTIATION/order", dto.ReorderStageRequest{DealIDs: ids})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "NEGOTIATION", gotStage)
	assert.Equal(t, ids, gotIDs)

	w = postJSON(router, http.MethodPut, "/board/stages/BOGUS/order", dto.ReorderStageRequest{DealIDs: ids})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, http.MethodPut, "/board/stages/NEGOTIATION/order", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoardHandler_BoardSocket(t *testing.T) {
	userID := uuid.New()
	var gotUser uuid.UUID
	stream := &MockBoardStream{
		ServeWSFunc: func(w http.ResponseWriter, r *http.Request, id uuid.UUID) error {
			gotUser = id
			return errors.New("websocket: the client is not using the websocket protocol")
		},
	}
	handler := NewBoardHandler(&MockPipelineService{}, stream, zap.NewNop())

	router := setupTestRouter()
	router.GET("/board/ws", func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), "user_id", userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, handler.BoardSocket)

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/board/ws", nil))
	})
	assert.Equal(t, userID, gotUser)
}
