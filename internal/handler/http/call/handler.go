// Package call exposes the call history REST surface.
package call

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatlink-backend/internal/repository/cockroach"
	"chatlink-backend/pkg/constants"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/response"
)

// Handler handles call history HTTP requests
type Handler struct {
	callRepo *cockroach.CallRepository
}

// NewHandler creates a new call history handler
func NewHandler(callRepo *cockroach.CallRepository) *Handler {
	return &Handler{
		callRepo: callRepo,
	}
}

// GetHistory lists the newest calls between the viewer and the user in the path
// GET /v1/calls/:id?limit=20
func (h *Handler) GetHistory(c *gin.Context) {
	viewerIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	viewerID, ok := viewerIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return
	}

	peerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	limit := constants.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > constants.MaxPageSize {
			response.ValidationError(c, "Invalid limit")
			return
		}
	}

	calls, err := h.callRepo.ListBetween(c.Request.Context(), viewerID, peerID, limit)
	if err != nil {
		appErr := apperrors.GetAppError(err)
		response.Error(c, appErr.StatusCode, string(appErr.Code), appErr.Message)
		return
	}

	response.Success(c, http.StatusOK, calls)
}
