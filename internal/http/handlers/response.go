// Package handlers provides HTTP handler implementations for the public API
// and the Twilio channel webhooks.
//
// Every JSON error goes through fail, so clients always get an ErrorResponse
// with a stable code; webhook replies go through twiml. Example error:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "reminder not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/middleware"
)

const contentTypeTwiML = "text/xml; charset=utf-8"

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"reminder not found"`
}

// fail aborts the request with an ErrorResponse. Server errors are logged
// with the caller identity so a failing user can be traced across channels.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("identity", middleware.IdentityFrom(c)).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's NoRoute and NoMethod fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// twiml answers a Twilio webhook. Twilio treats any non-2xx as a delivery
// failure, so webhook replies are always 200.
func twiml(c *gin.Context, xml string) {
	c.Data(http.StatusOK, contentTypeTwiML, []byte(xml))
}
