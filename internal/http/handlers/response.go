// Package handlers implements the HTTP endpoints for lead intake, the agent
// pool and agent accounts.
//
// Every failure is answered with the same envelope:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "Lead not found"
//	}
//
// 5xx responses are also logged through the request-scoped logger together
// with any error attached via c.Error. The client never sees driver text.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lead-intake/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"Lead not found"`
}

// MessageResponse is a body that only carries a human-readable message.
type MessageResponse struct {
	Message string `json:"message" example:"Lead details submitted successfully."`
}

// fail aborts the request with the error envelope.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := middleware.RequestIDFrom(c)
	if reqID == "" {
		reqID = c.Writer.Header().Get("X-Request-ID")
	}

	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code)
		if last := c.Errors.Last(); last != nil {
			ev = ev.AnErr("cause", last.Err)
		}
		ev.Msg(msg)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{RequestID: reqID, Code: code, Message: msg})
}

// Fail is the exported variant of fail, used by the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// storageFail answers 500 storage_unavailable and keeps err for the log line.
func storageFail(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeStorage, "storage unavailable")
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
