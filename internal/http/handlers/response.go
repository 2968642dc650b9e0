// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints: the error
// envelope, the service-error translation and the success writers.
//
// Example error response:
//
//	HTTP/1.1 402 Payment Required
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "insufficient_balance",
//	  "message": "insufficient balance"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-ledger/internal/http/middleware"
	"github.com/tbourn/go-chat-ledger/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"insufficient_balance"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"insufficient balance"`
}

// fail aborts the request with a structured error. The code is recorded for
// the metrics and access log middleware; 5xx responses are also logged here
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	middleware.SetErrorCode(c, code)

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail() for router-level handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr translates a service error into the envelope. Internal errors are
// logged with their cause and answered with a generic message.
func failErr(c *gin.Context, err error) {
	code := services.ErrorCode(err)
	if code == ErrCodeInternal {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("service error")
	}
	fail(c, statusFor(code), code, messageFor(err, code))
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
