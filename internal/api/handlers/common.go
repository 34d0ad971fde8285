package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/pkg/logger"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 1000
)

// Response is the envelope every API endpoint returns
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// requestLogger returns the logger the logging middleware attached, if any.
func requestLogger(c *gin.Context, fallback *logger.Logger) *logger.Logger {
	return logger.FromContext(c.Request.Context(), fallback)
}

// respondSuccess sends a success response with data
func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{Success: false, Error: message, Code: code})
}

// respondBadRequest sends a bad request error
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

// respondDomainError maps a service error onto the envelope. Only invalid
// input is the caller's fault; everything else surfaces as a 500.
func respondDomainError(c *gin.Context, log *logger.Logger, err error) {
	status := statusForError(err)
	code := domainerrors.GetErrorCode(err)
	if code == "" || code == "UNKNOWN_ERROR" {
		code = ErrCodeInternalError
	}

	if status >= http.StatusInternalServerError {
		requestLogger(c, log).Error("Request failed",
			"request_id", getRequestID(c),
			"code", code,
			"error", err)
	}
	respondError(c, status, code, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidArgument), errors.Is(err, domainerrors.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseLimit reads the limit query parameter. Absent means DefaultListLimit.
func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return DefaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, domainerrors.InvalidArgumentError("limit", "limit must be a positive integer")
	}
	if limit > MaxListLimit {
		return 0, domainerrors.InvalidArgumentError("limit", "limit must not exceed "+strconv.Itoa(MaxListLimit))
	}
	return limit, nil
}
