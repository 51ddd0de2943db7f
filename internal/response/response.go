package response

import (
	"github.com/gin-gonic/gin"

	commonresp "github.com/OrangesCloud/wealist-advanced-go-pkg/response"
)

// SuccessResponse is the envelope for successful responses
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"requestId,omitempty"`
}

// ErrorResponse is the envelope for failed responses
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"requestId,omitempty"`
}

// ErrorBody carries the machine-readable code and a message
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SendSuccess writes a success envelope
func SendSuccess(c *gin.Context, status int, data interface{}) {
	commonresp.Success(c, status, data)
}

// SendError writes an error envelope
func SendError(c *gin.Context, status int, code, message string) {
	commonresp.Error(c, status, code, message)
}

// SendErrorWithDetails writes an error envelope including details. Empty
// details are left out of the body.
func SendErrorWithDetails(c *gin.Context, status int, code, message, details string) {
	if details == "" {
		commonresp.Error(c, status, code, message)
		return
	}
	commonresp.ErrorWithDetails(c, status, code, message, details)
}
