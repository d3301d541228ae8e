// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/infrastructure/http/v1/dto"
	"retailledger/internal/infrastructure/http/v1/middleware"
	"retailledger/pkg/logger"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds the JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error processes error and sends appropriate response.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	h.HandleError(c, err)
}

// HandleError registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseID reads the :name path parameter as an id.
func (h *BaseHandler) ParseID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.ParseField(name, c.Param(name))
	if err != nil {
		h.Error(c, err)
		return id.ID{}, false
	}
	return v, true
}

// ParseDay reads the :name path parameter as a YYYY-MM-DD day.
func (h *BaseHandler) ParseDay(c *gin.Context, name string) (time.Time, bool) {
	day, err := clock.ParseDay(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid date, expected YYYY-MM-DD").
			WithDetail("field", name).
			WithDetail("value", c.Param(name)))
		return time.Time{}, false
	}
	return day, true
}

// GetUserID extracts user ID from request context.
func (h *BaseHandler) GetUserID(c *gin.Context) string {
	return appctx.GetUserID(c.Request.Context())
}

// RequireUser returns the caller or aborts with 401.
func (h *BaseHandler) RequireUser(c *gin.Context) (string, bool) {
	userID := h.GetUserID(c)
	if userID == "" {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return "", false
	}
	return userID, true
}

type idempotencyCompleter interface {
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// CompleteIdempotency marks idempotency key as completed with the same HTTP semantics
// (status code + content type + body) for correct replay.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	key, exists := c.Get(middleware.ContextIdempotencyKey)
	if !exists {
		return
	}
	store, ok := c.Get(middleware.ContextIdempotencyStore)
	if !ok {
		return
	}
	if s, ok := store.(idempotencyCompleter); ok {
		if err := s.CompleteKey(c.Request.Context(), key.(string), statusCode, contentType, response); err != nil {
			logger.Warn(c.Request.Context(), "failed to complete idempotency key", "key", key, "error", err)
		}
	}
}

// Created sends 201 response with the created resource.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", data)
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusOK, "application/json", data)
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	// 204 must replay as 204 with empty body.
	h.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}

// Success sends success response.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	response := dto.SuccessResponse{Success: true, Message: message}
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}
