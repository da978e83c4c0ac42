package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"productradar/internal/jobs"
	"productradar/internal/repository"
	"productradar/internal/service"
	"productradar/internal/signal"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps service sentinels to HTTP status codes.
func Fail(c *gin.Context, err error, meta map[string]any) {
	Error(c, statusOf(err), err.Error(), meta)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, jobs.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, service.ErrFeatureDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrUnknownSource), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, signal.ErrInvalidEvent):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
